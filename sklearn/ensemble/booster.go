package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/houseprice/core/parallel"
	"github.com/YuminosukeSato/houseprice/pkg/errors"
	"github.com/YuminosukeSato/houseprice/pkg/log"
)

// minGainToSplit is the smallest gain accepted for a split
const minGainToSplit = 1e-12

// histogramParallelThreshold is the node size (rows × features) above which
// feature histograms are built concurrently
const histogramParallelThreshold = 1 << 15

// booster implements histogram-based gradient boosting for one Fit call
type booster struct {
	params    Params
	objective ObjectiveFunction

	X    *mat.Dense
	y    []float64
	rows int
	cols int

	// Histogram data structures, computed once per fit.
	// thresholds[j] are the ascending bin upper bounds of feature j,
	// bins[j][i] is the bin of row i (value <= thresholds[j][bin]).
	thresholds [][]float64
	bins       [][]uint16

	gradients []float64
	hessians  []float64

	// preds caches the running ensemble prediction of every training row
	preds []float64

	trees     []Tree
	initScore float64
	rng       *rand.Rand
	logger    log.Logger
}

// bin is one histogram bucket
type bin struct {
	grad  float64
	hess  float64
	count int
}

// splitInfo contains information about a candidate split
type splitInfo struct {
	feature int
	bin     int
	gain    float64
}

func newBooster(params Params, X *mat.Dense, y []float64, logger log.Logger) *booster {
	rows, cols := X.Dims()
	seed := uint64(params.RandomSeed)
	return &booster{
		params:    params,
		objective: NewL2Objective(),
		X:         X,
		y:         y,
		rows:      rows,
		cols:      cols,
		gradients: make([]float64, rows),
		hessians:  make([]float64, rows),
		preds:     make([]float64, rows),
		rng:       rand.New(rand.NewPCG(seed, seed)),
		logger:    logger,
	}
}

// train runs all boosting iterations
func (b *booster) train() error {
	b.initScore = b.objective.InitScore(b.y)
	for i := range b.preds {
		b.preds[i] = b.initScore
	}

	b.buildHistograms()

	warned := false
	row := make([]float64, b.cols)
	for iter := 0; iter < b.params.Iterations; iter++ {
		b.calculateGradients()

		tree := b.buildTree(b.sampleRows())
		b.trees = append(b.trees, tree)

		if len(tree.Nodes) == 1 && !warned {
			warned = true
			errors.Warn(errors.NewConvergenceWarning("GradientBoostingRegressor", iter,
				"no split improves the loss, trees degenerate to a single leaf"))
		}

		for i := 0; i < b.rows; i++ {
			mat.Row(row, i, b.X)
			b.preds[i] += tree.Predict(row)
		}

		if iter%100 == 0 && b.logger.Enabled(context.Background(), log.LevelDebug) {
			b.logger.Debug("boosting progress",
				log.IterationKey, iter,
				log.LossKey, b.loss())
		}
	}

	if err := errors.CheckNumericalStability("GradientBoostingRegressor.Fit", b.preds, len(b.trees)); err != nil {
		return err
	}
	return nil
}

// buildHistograms computes the bin thresholds and bins every row
func (b *booster) buildHistograms() {
	b.thresholds = make([][]float64, b.cols)
	b.bins = make([][]uint16, b.cols)

	parallel.ParallelizeWithThreshold(b.cols, 8, func(start, end int) {
		values := make([]float64, b.rows)
		for j := start; j < end; j++ {
			mat.Col(values, j, b.X)
			th := findBinThresholds(values, b.params.MaxBin)
			binned := make([]uint16, b.rows)
			for i, v := range values {
				binned[i] = uint16(sort.SearchFloat64s(th, v))
			}
			b.thresholds[j] = th
			b.bins[j] = binned
		}
	})
}

// findBinThresholds returns ascending split points between the distinct
// values of a feature. At most maxBin-1 points are kept, chosen at equal
// frequency over the distinct values. A constant feature has none.
func findBinThresholds(values []float64, maxBin int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) < 2 {
		return nil
	}

	if len(unique) <= maxBin {
		th := make([]float64, len(unique)-1)
		for i := range th {
			th[i] = (unique[i] + unique[i+1]) / 2
		}
		return th
	}

	th := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		i := k * len(unique) / maxBin
		mid := (unique[i-1] + unique[i]) / 2
		if len(th) == 0 || mid > th[len(th)-1] {
			th = append(th, mid)
		}
	}
	return th
}

// calculateGradients computes gradients and hessians for current predictions
func (b *booster) calculateGradients() {
	for i := 0; i < b.rows; i++ {
		b.gradients[i] = b.objective.CalculateGradient(b.preds[i], b.y[i])
		b.hessians[i] = b.objective.CalculateHessian(b.preds[i], b.y[i])
	}
}

// sampleRows returns the row indices used for the next tree
func (b *booster) sampleRows() []int {
	if b.params.Subsample >= 1 {
		indices := make([]int, b.rows)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	n := int(math.Ceil(b.params.Subsample * float64(b.rows)))
	indices := b.rng.Perm(b.rows)[:n]
	sort.Ints(indices)
	return indices
}

// buildTree grows one depth-wise tree on the given rows
func (b *booster) buildTree(indices []int) Tree {
	tree := Tree{ShrinkageRate: b.params.LearningRate}
	b.buildNode(&tree, indices, 0)
	return tree
}

// buildNode recursively builds tree nodes and returns the node index
func (b *booster) buildNode(tree *Tree, indices []int, depth int) int {
	nodeIdx := len(tree.Nodes)

	sumGrad, sumHess := 0.0, 0.0
	for _, idx := range indices {
		sumGrad += b.gradients[idx]
		sumHess += b.hessians[idx]
	}
	tree.Nodes = append(tree.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  b.calculateLeafValue(sumGrad, sumHess),
		Count:      len(indices),
	})

	if depth >= b.params.Depth || len(indices) < 2*b.params.MinDataInLeaf {
		return nodeIdx
	}

	best := b.findBestSplit(indices, sumGrad, sumHess)
	if best.gain <= minGainToSplit {
		return nodeIdx
	}

	threshold := b.thresholds[best.feature][best.bin]
	featureBins := b.bins[best.feature]
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if int(featureBins[idx]) <= best.bin {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}

	tree.Nodes[nodeIdx].SplitFeature = best.feature
	tree.Nodes[nodeIdx].Threshold = threshold
	tree.Nodes[nodeIdx].Gain = best.gain

	leftChild := b.buildNode(tree, leftIndices, depth+1)
	rightChild := b.buildNode(tree, rightIndices, depth+1)
	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild

	return nodeIdx
}

// findBestSplit scans the histogram of every feature. Ties keep the lowest
// feature and bin so the result does not depend on scheduling.
func (b *booster) findBestSplit(indices []int, totalGrad, totalHess float64) splitInfo {
	perFeature := make([]splitInfo, b.cols)
	work := func(start, end int) {
		var hist []bin
		for j := start; j < end; j++ {
			nb := len(b.thresholds[j]) + 1
			if nb < 2 {
				perFeature[j] = splitInfo{feature: j, gain: math.Inf(-1)}
				continue
			}
			if cap(hist) < nb {
				hist = make([]bin, nb)
			}
			hist = hist[:nb]
			for k := range hist {
				hist[k] = bin{}
			}
			featureBins := b.bins[j]
			for _, idx := range indices {
				h := &hist[featureBins[idx]]
				h.grad += b.gradients[idx]
				h.hess += b.hessians[idx]
				h.count++
			}
			perFeature[j] = b.findBestSplitForFeature(j, hist, totalGrad, totalHess, len(indices))
		}
	}
	parallel.ParallelizeWithThreshold(b.cols, histogramParallelThreshold/max(len(indices), 1), work)

	best := splitInfo{feature: -1, gain: math.Inf(-1)}
	for _, s := range perFeature {
		if s.gain > best.gain {
			best = s
		}
	}
	return best
}

// findBestSplitForFeature scans bin boundaries of one feature
func (b *booster) findBestSplitForFeature(feature int, hist []bin, totalGrad, totalHess float64, total int) splitInfo {
	best := splitInfo{feature: feature, gain: math.Inf(-1)}

	leftGrad, leftHess, leftCount := 0.0, 0.0, 0
	for k := 0; k < len(hist)-1; k++ {
		leftGrad += hist[k].grad
		leftHess += hist[k].hess
		leftCount += hist[k].count

		rightCount := total - leftCount
		if leftCount < b.params.MinDataInLeaf {
			continue
		}
		if rightCount < b.params.MinDataInLeaf {
			break
		}
		if hist[k].count == 0 {
			// same partition as the previous boundary
			continue
		}

		gain := b.calculateSplitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > best.gain {
			best.gain = gain
			best.bin = k
		}
	}
	return best
}

// calculateSplitGain calculates the gain from a split
func (b *booster) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := b.params.L2LeafReg

	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}

// calculateLeafValue calculates the optimal value for a leaf node
func (b *booster) calculateLeafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + b.params.L2LeafReg
	if denom < 1e-10 {
		return 0
	}
	return -sumGrad / denom
}

// loss is the mean training loss of the cached predictions
func (b *booster) loss() float64 {
	sum := 0.0
	for i := 0; i < b.rows; i++ {
		sum += b.objective.CalculateLoss(b.preds[i], b.y[i])
	}
	return sum / float64(b.rows)
}
