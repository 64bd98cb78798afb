package character

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yolodolo42/questline/internal/ui"
)

// Sheet is the character view. It keeps the latest known state of each section
// and merges partial snapshots into it: sections missing from an update keep
// their previous value.
type Sheet struct {
	mu      sync.RWMutex
	current Snapshot
	known   bool
}

// NewSheet creates an empty sheet.
func NewSheet() *Sheet {
	return &Sheet{}
}

// Show merges a snapshot into the sheet.
func (s *Sheet) Show(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Name != "" {
		s.current.Name = snap.Name
	}
	if snap.Lore != "" {
		s.current.Lore = snap.Lore
	}
	// Stats are only redrawn when both halves are present.
	if snap.Health != nil && snap.Level != nil {
		h, l := *snap.Health, *snap.Level
		s.current.Health, s.current.Level = &h, &l
	}
	if snap.Equipment != nil {
		s.current.Equipment = make(map[string]*Item, len(snap.Equipment))
		for k, v := range snap.Equipment {
			s.current.Equipment[k] = v
		}
	}
	if !snap.Inventory.IsZero() {
		s.current.Inventory = snap.Inventory
	}
	s.known = true
}

// Current returns a copy of the merged snapshot and whether anything was shown yet.
func (s *Sheet) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.known
}

// Render draws the sheet for the terminal.
func (s *Sheet) Render(width int) string {
	snap, ok := s.Current()
	if !ok {
		return ui.HelpStyle.Render("No character yet.")
	}
	return ui.SheetStyle.Width(width).Render(RenderSnapshot(&snap))
}

// RenderSnapshot lays out name, stats, equipment and inventory without a border.
func RenderSnapshot(snap *Snapshot) string {
	var b strings.Builder

	name := snap.Name
	if name == "" {
		name = "Unnamed"
	}
	b.WriteString(ui.TitleStyle.Render(name))
	b.WriteString("\n")
	if snap.Lore != "" {
		b.WriteString(ui.HelpStyle.Render(snap.Lore))
		b.WriteString("\n")
	}

	if snap.Health != nil && snap.Level != nil {
		b.WriteString("\n")
		b.WriteString(statLine("Health", ui.HealthStyle.Render(fmt.Sprintf("%d/%d", snap.Health.CurrentHealth, snap.Health.MaxHealth))))
		b.WriteString(statLine("Mana", ui.ManaStyle.Render(fmt.Sprintf("%d/%d", snap.Health.CurrentMana, snap.Health.MaxMana))))
		b.WriteString(statLine("Level", fmt.Sprintf("%d", snap.Level.Level)))
		b.WriteString(statLine("XP", fmt.Sprintf("%d/%d", snap.Level.Experience, snap.Level.ExperienceToNextLevel)))
	}

	if len(snap.Equipment) > 0 {
		b.WriteString("\n")
		b.WriteString(ui.TitleStyle.Render("Equipment"))
		b.WriteString("\n")
		for _, slot := range snap.Slots() {
			b.WriteString(fmt.Sprintf("  %s: %s\n", SlotName(slot), snap.Equipment[slot].String()))
		}
	}

	if !snap.Inventory.IsZero() {
		b.WriteString("\n")
		b.WriteString(ui.TitleStyle.Render("Inventory"))
		b.WriteString("\n")
		lines := snap.Inventory.Lines()
		if len(lines) == 0 {
			b.WriteString("  " + EmptyInventoryText + "\n")
		}
		for _, line := range lines {
			b.WriteString("  " + strings.TrimSpace(line) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func statLine(label, value string) string {
	return ui.StatLabelStyle.Render(label+":") + " " + value + "\n"
}
