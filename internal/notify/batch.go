// Package notify groups alerts by category and delivers them to the
// Telegram sink within the transport limits.
package notify

// Batch collects alert texts grouped by category. Categories keep the
// order of first appearance; alerts keep insertion order within one.
type Batch struct {
	order  []string
	groups map[string][]string
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{groups: make(map[string][]string)}
}

// Add appends an alert to its category group.
func (b *Batch) Add(category, text string) {
	if _, ok := b.groups[category]; !ok {
		b.order = append(b.order, category)
	}
	b.groups[category] = append(b.groups[category], text)
}

// Empty reports whether no alerts were added.
func (b *Batch) Empty() bool {
	return len(b.order) == 0
}

// Total returns the number of alerts across all groups.
func (b *Batch) Total() int {
	n := 0
	for _, alerts := range b.groups {
		n += len(alerts)
	}
	return n
}

// Group is one category's worth of alerts.
type Group struct {
	Category string
	Alerts   []string
}

// Groups returns the batched alerts in category first-seen order.
func (b *Batch) Groups() []Group {
	out := make([]Group, 0, len(b.order))
	for _, cat := range b.order {
		out = append(out, Group{Category: cat, Alerts: b.groups[cat]})
	}
	return out
}
