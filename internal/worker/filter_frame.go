package worker

import (
	"time"

	"openfilter/internal/frame"
)

// FilterTopic is the reserved topic carrying the logical frame ID for a tick.
const FilterTopic = "_filter"

// frameIDState tracks the monotonic counter used when no input frame supplies
// its own meta.id.
type frameIDState struct {
	counter int64
}

// next returns the logical frame ID for this tick: the propagated meta.id
// from any input frame if one is present, otherwise the next value of a
// per-worker monotonic counter starting at 0.
func (s *frameIDState) next(in frame.Set) int64 {
	for _, f := range in {
		if id, ok := f.ID(); ok {
			return id
		}
	}
	id := s.counter
	s.counter++
	return id
}

// buildFilterFrame renders the _filter frame for the given logical frame ID. The id is
// carried in Data, not Meta: consumers read it as filter_frame.data.id.
func buildFilterFrame(id int64) *frame.Frame {
	return frame.New(nil, frame.Meta{
		frame.MetaTimestampKey: float64(time.Now().UnixNano()) / 1e9,
	}, frame.Data{
		"id": id,
	})
}
