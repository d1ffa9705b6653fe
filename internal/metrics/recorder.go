package metrics

import "energydash/internal/snapshot"

// Recorder feeds node powers from each shown snapshot into a Collector.
// It is registered with the controller like any other display.
type Recorder struct {
	collector Collector
}

// NewRecorder creates a recorder for collector
func NewRecorder(collector Collector) *Recorder {
	if collector == nil {
		collector = Noop()
	}
	return &Recorder{collector: collector}
}

// Show records the snapshot. A nil snapshot clears the node gauges.
func (r *Recorder) Show(doc snapshot.Doc) {
	for node := range snapshot.MeterFields {
		w, ok := doc.NodePower(node)
		r.collector.SetNodePower(node, w, ok)
	}
	soc, ok := doc.Float("bms", "soc")
	r.collector.SetSOC(soc, ok)
}
