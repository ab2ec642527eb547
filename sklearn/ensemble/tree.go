package ensemble

// Node is one node of a regression tree stored in a flat slice.
// Leaves have LeftChild == RightChild == -1.
type Node struct {
	LeftChild  int // Left child node index (-1 if leaf)
	RightChild int // Right child node index (-1 if leaf)

	// Split information (for non-leaf nodes)
	SplitFeature int     // Feature index used for splitting
	Threshold    float64 // Rows with value <= Threshold go left
	Gain         float64 // Split gain (reduction in loss)

	// Leaf information (for leaf nodes)
	LeafValue float64 // Unshrunk leaf value -G/(H+λ)
	Count     int     // Number of training rows that reached the node
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	ShrinkageRate float64 // Learning rate applied to this tree
	Nodes         []Node  // Nodes[0] is the root
}

// Predict returns the shrunk output of the tree for one row
func (t *Tree) Predict(row []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if row[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// NumLeaves counts the leaf nodes
func (t *Tree) NumLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// Depth returns the length of the longest root-to-leaf path
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.LeftChild), walk(n.RightChild)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}
