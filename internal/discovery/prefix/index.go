// Package prefix implements case-insensitive prefix lookup of topic titles
// over a character trie.
package prefix

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type node struct {
	children map[rune]*node
	terminal bool
	topic    forum.Topic
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

// Index is a trie keyed by case-folded title. It is safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	root  *node
	count int
}

func NewIndex() *Index {
	return &Index{root: newNode()}
}

// Fold returns the lookup form of s. Folding runs on the decomposed form and
// the result is recomposed, so canonically equivalent titles share one NFC
// key.
func Fold(s string) string {
	return norm.NFC.String(cases.Fold().String(norm.NFD.String(s)))
}

// Insert adds topic under title. Inserting a title that folds to an existing
// key replaces that key's topic.
func (idx *Index) Insert(title string, topic forum.Topic) {
	key := Fold(title)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}
	if !n.terminal {
		idx.count++
	}
	n.terminal = true
	n.topic = topic
}

// Search returns every topic whose folded title starts with the folded
// prefix. The empty prefix matches all topics. The result is never nil and
// its order is unspecified.
func (idx *Index) Search(prefix string) []forum.Topic {
	key := Fold(prefix)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := idx.root
	for _, r := range key {
		child, ok := n.children[r]
		if !ok {
			return []forum.Topic{}
		}
		n = child
	}

	results := make([]forum.Topic, 0)
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.terminal {
			results = append(results, cur.topic)
		}
		for _, child := range cur.children {
			stack = append(stack, child)
		}
	}
	return results
}

// Len returns the number of distinct titles in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}

// Reset discards every entry.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.root = newNode()
	idx.count = 0
}
