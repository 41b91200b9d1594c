// Package merkle is an implementation of a Merkle DAG for chat transcripts.
// Each node holds one message; a conversation is the path from a root to a
// leaf, and conversations that share a prefix share nodes.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// BucketTypeMessage is the bucket type for a conversation message.
const BucketTypeMessage = "message"

// Bucket is the hashable content of a node.
type Bucket struct {
	Type     string `json:"type"`
	Role     string `json:"role"`
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	// Bucket is the hashable content for the node
	Bucket Bucket `json:"bucket"`
}

// NewNode creates a new node with the computed hash for the provided bucket
func NewNode(bucket Bucket, parent *Node) *Node {
	n := &Node{
		Bucket: bucket,
	}

	if parent != nil {
		parentHash := parent.Hash
		n.ParentHash = &parentHash
	}

	n.Hash = n.computeHash()
	return n
}

// Verify reports whether the node's hash matches its content and parent.
func (n *Node) Verify() bool {
	return n.Hash == n.computeHash()
}

type input struct {
	Parent string `json:"parent,omitempty"`
	Bucket Bucket `json:"bucket"`
}

func (n *Node) computeHash() string {
	i := &input{
		Bucket: n.Bucket,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// Bucket holds only strings, so marshaling cannot fail and field order
	// is fixed by the struct.
	data, _ := json.Marshal(i)

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
