package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"pairScope/internal/model"
)

// ReadRequests parses a JSONL stream of operation requests. Sequences must be
// strictly increasing.
func ReadRequests(r io.Reader) ([]model.OperationRequest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		requests []model.OperationRequest
		line     int
	)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var req model.OperationRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("parse request line %d: %w", line, err)
		}
		if req.Op == "" {
			return nil, fmt.Errorf("request line %d: op is required", line)
		}
		if n := len(requests); n > 0 && req.Seq <= requests[n-1].Seq {
			return nil, fmt.Errorf("request line %d: seq %d not after %d", line, req.Seq, requests[n-1].Seq)
		}
		requests = append(requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan requests: %w", err)
	}
	return requests, nil
}

// splitBatches cuts requests into consecutive batches of at most size.
func splitBatches(requests []model.OperationRequest, size int) ([][]model.OperationRequest, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	batches := make([][]model.OperationRequest, 0, (len(requests)+size-1)/size)
	for start := 0; start < len(requests); start += size {
		end := start + size
		if end > len(requests) {
			end = len(requests)
		}
		batches = append(batches, requests[start:end])
	}
	return batches, nil
}

// isPoolOp reports whether req operates on an existing pool. Other operations
// act as barriers between concurrent segments.
func isPoolOp(req model.OperationRequest) bool {
	switch req.Op {
	case model.OpProvideLiquidity, model.OpSwap, model.OpWithdrawLiquidity:
		return true
	default:
		return false
	}
}

// segment is a run of batch indexes executed together: either one barrier
// request, or pool operations grouped into lanes with order kept inside a
// lane. A lane holds every pool whose requests share a sender or recipient,
// so settlements against one account follow seq order.
type segment struct {
	barrier   int
	isBarrier bool
	groups    map[string][]int
	order     []string
}

func splitSegments(batch []model.OperationRequest) []segment {
	var (
		out     []segment
		pending []int
	)
	for i := range batch {
		if isPoolOp(batch[i]) {
			pending = append(pending, i)
			continue
		}
		if len(pending) > 0 {
			out = append(out, buildLanes(batch, pending))
			pending = nil
		}
		out = append(out, segment{barrier: i, isBarrier: true})
	}
	if len(pending) > 0 {
		out = append(out, buildLanes(batch, pending))
	}
	return out
}

// buildLanes groups the pool operations at indexes into lanes keyed by the
// first pool of each lane.
func buildLanes(batch []model.OperationRequest, indexes []int) segment {
	parent := make(map[string]string)
	first := make(map[string]int)
	find := func(pool string) string {
		for parent[pool] != pool {
			parent[pool] = parent[parent[pool]]
			pool = parent[pool]
		}
		return pool
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if first[rb] < first[ra] {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	owner := make(map[string]string)
	for _, idx := range indexes {
		req := batch[idx]
		if _, ok := parent[req.Pool]; !ok {
			parent[req.Pool] = req.Pool
			first[req.Pool] = idx
		}
		for _, account := range []string{req.Sender, req.To} {
			if account == "" {
				continue
			}
			if pool, ok := owner[account]; ok {
				union(pool, req.Pool)
			} else {
				owner[account] = req.Pool
			}
		}
	}

	seg := segment{groups: make(map[string][]int)}
	for _, idx := range indexes {
		lane := find(batch[idx].Pool)
		if _, ok := seg.groups[lane]; !ok {
			seg.order = append(seg.order, lane)
		}
		seg.groups[lane] = append(seg.groups[lane], idx)
	}
	return seg
}
