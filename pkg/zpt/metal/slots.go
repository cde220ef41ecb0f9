package metal

import (
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// SlotFinder locates define-slot and fill-slot elements.
type SlotFinder struct {
	specs Specs
}

// NewSlotFinder creates a finder for specs.
func NewSlotFinder(specs Specs) *SlotFinder {
	return &SlotFinder{specs: specs}
}

// GetSlotFillers returns the fill-slot elements that belong to root: its
// descendants, excluding the content of nested use-macro elements and of
// the fillers themselves. When two fillers share a name the first wins.
func (f *SlotFinder) GetSlotFillers(root *dom.Node) map[string]Slot {
	fillers := map[string]Slot{}
	for _, c := range root.Children {
		c.Walk(func(n *dom.Node) bool {
			if !n.IsElement() {
				return false
			}
			if a := n.FindAttribute(f.specs.FillSlot); a != nil {
				if _, exists := fillers[a.Value]; !exists {
					fillers[a.Value] = Slot{Name: a.Value, Node: n}
				}
				return false
			}
			return n.FindAttribute(f.specs.UseMacro) == nil
		})
	}
	return fillers
}

// GetDefinedSlots returns every define-slot element beneath root, in
// document order.
func (f *SlotFinder) GetDefinedSlots(root *dom.Node) []Slot {
	var slots []Slot
	for _, c := range root.Children {
		c.Walk(func(n *dom.Node) bool {
			if !n.IsElement() {
				return false
			}
			if a := n.FindAttribute(f.specs.DefineSlot); a != nil {
				slots = append(slots, Slot{Name: a.Value, Node: n})
			}
			return true
		})
	}
	return slots
}

// SlotFiller replaces define-slot elements with copies of their fillers.
type SlotFiller struct {
	specs  Specs
	logger *slog.Logger
}

// NewSlotFiller creates a filler for specs.
func NewSlotFiller(specs Specs, logger *slog.Logger) *SlotFiller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlotFiller{specs: specs, logger: logger}
}

// FillSlots fills each of slots that has a filler of the same name.
// Fillers are consumed as they are used. Slots which are no longer
// beneath root, because an enclosing slot was filled first, are skipped.
func (f *SlotFiller) FillSlots(fillers map[string]Slot, slots []Slot, root *dom.Node) {
	for _, slot := range slots {
		filler, ok := fillers[slot.Name]
		if !ok {
			continue
		}
		if !isDescendant(slot.Node, root) {
			continue
		}

		replacement := filler.Node.DeepCopy()
		replacement.RemoveAttributes(func(a *dom.Attribute) bool { return a.Matches(f.specs.FillSlot) })
		// Keep the slot fillable by a macro further down an extension chain.
		if a := slot.Node.FindAttribute(f.specs.FillSlot); a != nil {
			replacement.AddAttribute(a.Copy())
		}

		f.logger.Debug("filling slot", "slot", slot.Name, "filler", filler.Node.String())
		slot.Node.ReplaceWith(replacement)
		delete(fillers, slot.Name)
	}
}

func isDescendant(n, root *dom.Node) bool {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if cur == root {
			return true
		}
	}
	return false
}
