// Package transcript stores finished chat turns in a merkle DAG so that
// conversations can be inspected after the session that produced them ends.
package transcript

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/YourPureAI/ai-api-connector/pkg/llm"
	"github.com/YourPureAI/ai-api-connector/pkg/llm/provider"
	"github.com/YourPureAI/ai-api-connector/pkg/merkle"
)

var (
	// ErrNoMessages is returned when asked to record an empty conversation.
	ErrNoMessages = errors.New("no messages to record")

	// ErrCorruptNode is returned when a stored node no longer matches its hash.
	ErrCorruptNode = errors.New("stored node does not match its hash")
)

// Recorder writes conversations into a merkle.Storer.
type Recorder struct {
	storer merkle.Storer
	logger *zap.Logger
}

// NewRecorder creates a Recorder backed by storer.
func NewRecorder(storer merkle.Storer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{storer: storer, logger: logger}
}

// Record stores messages as a chain and returns the hash of the last node.
// Messages already stored under the same parent are reused, so recording a
// conversation after every turn only adds the new tail. The final message is
// stamped with the provider and model that produced it.
func (r *Recorder) Record(ctx context.Context, name provider.Name, model string, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	var parent *merkle.Node
	added := 0
	for i, m := range messages {
		bucket := merkle.Bucket{
			Type:    merkle.BucketTypeMessage,
			Role:    string(m.Role),
			Content: m.Content,
		}

		if i < len(messages)-1 {
			existing, err := r.existingChild(ctx, parent, bucket)
			if err != nil {
				return "", err
			}
			if existing != nil {
				parent = existing
				continue
			}
		} else if m.Role == llm.RoleAssistant {
			bucket.Provider = string(name)
			bucket.Model = model
		}

		node := merkle.NewNode(bucket, parent)
		if err := r.storer.Put(ctx, node); err != nil {
			return "", fmt.Errorf("store message %d: %w", i, err)
		}
		parent = node
		added++
	}

	r.logger.Debug("recorded transcript",
		zap.String("head", parent.Hash),
		zap.Int("message_count", len(messages)),
		zap.Int("new_nodes", added),
	)
	return parent.Hash, nil
}

// existingChild finds a stored child of parent whose role and content match
// bucket, regardless of provider stamping.
func (r *Recorder) existingChild(ctx context.Context, parent *merkle.Node, bucket merkle.Bucket) (*merkle.Node, error) {
	var parentHash *string
	if parent != nil {
		parentHash = &parent.Hash
	}
	children, err := r.storer.GetByParent(ctx, parentHash)
	if err != nil {
		return nil, fmt.Errorf("lookup children: %w", err)
	}
	for _, c := range children {
		if c.Bucket.Type == bucket.Type && c.Bucket.Role == bucket.Role && c.Bucket.Content == bucket.Content {
			return c, nil
		}
	}
	return nil, nil
}

// History returns the conversation ending at hash, oldest message first.
func (r *Recorder) History(ctx context.Context, hash string) ([]*merkle.Node, error) {
	nodes, err := r.storer.Descendants(ctx, hash)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		if !node.Verify() {
			return nil, fmt.Errorf("%w: %s", ErrCorruptNode, node.Hash)
		}
	}
	return nodes, nil
}

// Leaves returns the last node of every stored conversation.
func (r *Recorder) Leaves(ctx context.Context) ([]*merkle.Node, error) {
	return r.storer.Leaves(ctx)
}

// Stats summarizes the store.
type Stats struct {
	TotalNodes    int `json:"total_nodes"`
	RootCount     int `json:"root_count"`
	LeafCount     int `json:"leaf_count"`
	Conversations int `json:"conversations"`
}

// Stats counts nodes, roots and leaves. Each leaf ends one conversation.
func (r *Recorder) Stats(ctx context.Context) (Stats, error) {
	nodes, err := r.storer.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	roots, err := r.storer.Roots(ctx)
	if err != nil {
		return Stats{}, err
	}
	leaves, err := r.storer.Leaves(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalNodes:    len(nodes),
		RootCount:     len(roots),
		LeafCount:     len(leaves),
		Conversations: len(leaves),
	}, nil
}

// Node returns a single stored node.
func (r *Recorder) Node(ctx context.Context, hash string) (*merkle.Node, error) {
	node, err := r.storer.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !node.Verify() {
		return nil, fmt.Errorf("%w: %s", ErrCorruptNode, hash)
	}
	return node, nil
}
