package merkle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/YourPureAI/ai-api-connector/pkg/merkle"
)

func msg(content string) merkle.Bucket {
	return merkle.Bucket{Type: merkle.BucketTypeMessage, Role: "user", Content: content}
}

var _ = Describe("Node", func() {
	Describe("NewNode", func() {
		Context("when creating a root node (no parent)", func() {
			It("creates a node with the given bucket", func() {
				node := merkle.NewNode(msg("hello world"), nil)

				Expect(node.Bucket.Content).To(Equal("hello world"))
			})

			It("sets ParentHash to nil for root nodes", func() {
				node := merkle.NewNode(msg("test"), nil)

				Expect(node.ParentHash).To(BeNil())
			})

			It("produces consistent hashes for the same content", func() {
				node1 := merkle.NewNode(msg("same content"), nil)
				node2 := merkle.NewNode(msg("same content"), nil)

				Expect(node1.Hash).To(Equal(node2.Hash))
			})

			It("produces different hashes for different content", func() {
				node1 := merkle.NewNode(msg("content A"), nil)
				node2 := merkle.NewNode(msg("content B"), nil)

				Expect(node1.Hash).NotTo(Equal(node2.Hash))
			})

			It("hashes the role and model along with the content", func() {
				user := merkle.NewNode(msg("hi"), nil)
				assistant := merkle.NewNode(merkle.Bucket{Type: merkle.BucketTypeMessage, Role: "assistant", Content: "hi"}, nil)
				withModel := merkle.NewNode(merkle.Bucket{Type: merkle.BucketTypeMessage, Role: "user", Content: "hi", Model: "gpt-4"}, nil)

				Expect(user.Hash).NotTo(Equal(assistant.Hash))
				Expect(user.Hash).NotTo(Equal(withModel.Hash))
			})
		})

		Context("when creating a child node (with parent)", func() {
			var parent *merkle.Node

			BeforeEach(func() {
				parent = merkle.NewNode(msg("parent content"), nil)
			})

			It("links the child to the parent via ParentHash", func() {
				child := merkle.NewNode(msg("child content"), parent)

				Expect(child.ParentHash).NotTo(BeNil())
				Expect(*child.ParentHash).To(Equal(parent.Hash))
			})

			It("creates a chain of nodes", func() {
				child1 := merkle.NewNode(msg("child 1"), parent)
				child2 := merkle.NewNode(msg("child 2"), child1)
				child3 := merkle.NewNode(msg("child 3"), child2)

				Expect(parent.ParentHash).To(BeNil())
				Expect(*child1.ParentHash).To(Equal(parent.Hash))
				Expect(*child2.ParentHash).To(Equal(child1.Hash))
				Expect(*child3.ParentHash).To(Equal(child2.Hash))
			})

			It("produces different hashes for same content with different parents", func() {
				parent2 := merkle.NewNode(msg("different parent"), nil)
				child1 := merkle.NewNode(msg("same content"), parent)
				child2 := merkle.NewNode(msg("same content"), parent2)

				Expect(child1.Hash).NotTo(Equal(child2.Hash))
			})
		})
	})

	Describe("Hash computation", func() {
		It("produces a valid SHA-256 hex string (64 characters)", func() {
			node := merkle.NewNode(msg("test"), nil)

			Expect(node.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
		})

		It("verifies untouched nodes and rejects tampered ones", func() {
			node := merkle.NewNode(msg("test"), nil)
			Expect(node.Verify()).To(BeTrue())

			node.Bucket.Content = "tampered"
			Expect(node.Verify()).To(BeFalse())
		})
	})
})
