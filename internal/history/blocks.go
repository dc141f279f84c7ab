package history

import "fmt"

// SampleBlocks returns from, from+step, ... up to to. The last sample is
// always to, even when the range is not a multiple of step.
func SampleBlocks(from, to, step uint64) ([]uint64, error) {
	if step == 0 {
		return nil, fmt.Errorf("step must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	blocks := make([]uint64, 0, (to-from)/step+2)
	for block := from; block <= to; block += step {
		blocks = append(blocks, block)
		if to-block < step {
			break
		}
	}
	if blocks[len(blocks)-1] != to {
		blocks = append(blocks, to)
	}
	return blocks, nil
}
