// Package emd computes the Earth Mover's Distance between two weighted
// distributions over a shared support, given a pairwise ground-distance
// matrix. The transportation problem is solved exactly with successive
// shortest augmenting paths on the residual network.
package emd

import "math"

// Ground is the pairwise distance between support points. It must be
// symmetric with a zero diagonal; *mat.SymDense satisfies it.
type Ground interface {
	At(i, j int) float64
}

const eps = 1e-12

// Distance returns the minimum total transport cost turning w1 into
// w2. Both vectors index the same support as the ground matrix. When
// either side has no mass there is nothing to transport and the
// distance is 0. With both sides summing to 1 and ground distances in
// [0,1], the result lies in [0,1].
func Distance(w1, w2 []float64, ground Ground) float64 {
	n := len(w1)
	if n == 0 || len(w2) != n {
		return 0
	}

	supply := make([]float64, n)
	demand := make([]float64, n)
	total1, total2 := 0.0, 0.0
	for i := 0; i < n; i++ {
		supply[i] = w1[i]
		demand[i] = w2[i]
		total1 += w1[i]
		total2 += w2[i]
	}
	if total1 <= eps || total2 <= eps {
		return 0
	}

	// Node layout: suppliers 0..n-1, consumers n..2n-1, then a
	// virtual source and sink.
	source := 2 * n
	sink := 2*n + 1
	nodes := 2*n + 2

	flow := make([][]float64, n)
	for i := range flow {
		flow[i] = make([]float64, n)
	}

	// Each augmentation exhausts a supplier or a consumer, or empties
	// a residual arc; the cap guards against stalls from float drift.
	for iter := 0; iter < 2*n*n+16; iter++ {
		dist := make([]float64, nodes)
		prev := make([]int, nodes)
		for v := range dist {
			dist[v] = math.Inf(1)
			prev[v] = -1
		}
		dist[source] = 0

		// Bellman-Ford on the residual network.
		for round := 0; round < nodes-1; round++ {
			changed := false

			for i := 0; i < n; i++ {
				if supply[i] > eps && dist[source] < dist[i] {
					dist[i] = dist[source]
					prev[i] = source
					changed = true
				}
			}

			for i := 0; i < n; i++ {
				if math.IsInf(dist[i], 1) {
					continue
				}
				for j := 0; j < n; j++ {
					c := ground.At(i, j)
					if d := dist[i] + c; d < dist[n+j]-eps {
						dist[n+j] = d
						prev[n+j] = i
						changed = true
					}
				}
			}

			for j := 0; j < n; j++ {
				if math.IsInf(dist[n+j], 1) {
					continue
				}
				for i := 0; i < n; i++ {
					if flow[i][j] <= eps {
						continue
					}
					if d := dist[n+j] - ground.At(i, j); d < dist[i]-eps {
						dist[i] = d
						prev[i] = n + j
						changed = true
					}
				}
				if demand[j] > eps && dist[n+j] < dist[sink] {
					dist[sink] = dist[n+j]
					prev[sink] = n + j
					changed = true
				}
			}

			if !changed {
				break
			}
		}

		if math.IsInf(dist[sink], 1) {
			break
		}

		// Bottleneck along the augmenting path.
		delta := math.Inf(1)
		for v := sink; v != source; v = prev[v] {
			p := prev[v]
			switch {
			case v == sink:
				delta = math.Min(delta, demand[p-n])
			case p == source:
				delta = math.Min(delta, supply[v])
			case p >= n: // residual arc consumer->supplier
				delta = math.Min(delta, flow[v][p-n])
			}
		}
		if delta <= eps || math.IsInf(delta, 1) {
			break
		}

		for v := sink; v != source; v = prev[v] {
			p := prev[v]
			switch {
			case v == sink:
				demand[p-n] -= delta
			case p == source:
				supply[v] -= delta
			case p < n && v >= n: // forward supplier->consumer
				flow[p][v-n] += delta
			case p >= n && v < n: // residual consumer->supplier
				flow[v][p-n] -= delta
			}
		}
	}

	cost := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if flow[i][j] > eps {
				cost += flow[i][j] * ground.At(i, j)
			}
		}
	}

	return cost
}
