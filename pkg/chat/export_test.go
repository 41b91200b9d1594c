package chat

var Truncate = truncate
