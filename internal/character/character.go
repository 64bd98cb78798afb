package character

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EmptyInventoryText is what the server reports for an empty inventory.
const EmptyInventoryText = "Your inventory is empty."

// Snapshot is the server's view of the player character.
type Snapshot struct {
	Name      string           `json:"name"`
	Lore      string           `json:"lore"`
	Health    *Health          `json:"health,omitempty"`
	Level     *Level           `json:"level,omitempty"`
	Equipment map[string]*Item `json:"equipment,omitempty"`
	Inventory Inventory        `json:"inventory,omitempty"`
}

type Health struct {
	CurrentHealth int `json:"current_health"`
	MaxHealth     int `json:"max_health"`
	CurrentMana   int `json:"current_mana"`
	MaxMana       int `json:"max_mana"`
}

type Level struct {
	Level                 int `json:"level"`
	Experience            int `json:"experience"`
	ExperienceToNextLevel int `json:"experience_to_next_level"`
}

// Item is an equipped or carried item. Older servers send equipment slots as
// preformatted strings; those land in Label.
type Item struct {
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Amount      int     `json:"amount,omitempty"`
	Rarity      string  `json:"rarity,omitempty"`
	Label       string  `json:"-"`
}

func (it *Item) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*it = Item{Label: s}
		return nil
	}
	type plain Item
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*it = Item(p)
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	if it.Label != "" && it.Name == "" {
		return json.Marshal(it.Label)
	}
	type plain Item
	return json.Marshal(plain(it))
}

// String renders the item the way the server formats equipment.
func (it *Item) String() string {
	if it == nil {
		return "Empty"
	}
	if it.Label != "" {
		return it.Label
	}
	amount := it.Amount
	if amount == 0 {
		amount = 1
	}
	if it.Rarity == "" {
		return fmt.Sprintf("%s (x%d)", it.Name, amount)
	}
	return fmt.Sprintf("%s (x%d, %s)", it.Name, amount, it.Rarity)
}

// Inventory holds either the server's text listing or a structured item list.
type Inventory struct {
	Text  string
	Items []Item
}

func (inv *Inventory) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*inv = Inventory{Text: s}
		return nil
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err == nil {
		*inv = Inventory{Items: items}
		return nil
	}
	var byName map[string]Item
	if err := json.Unmarshal(b, &byName); err != nil {
		return fmt.Errorf("inventory: unsupported shape: %w", err)
	}
	names := make([]string, 0, len(byName))
	for k := range byName {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		it := byName[k]
		if it.Name == "" {
			it.Name = k
		}
		inv.Items = append(inv.Items, it)
	}
	return nil
}

func (inv Inventory) MarshalJSON() ([]byte, error) {
	if inv.Items != nil {
		return json.Marshal(inv.Items)
	}
	return json.Marshal(inv.Text)
}

// IsZero reports whether the inventory carries nothing at all.
func (inv Inventory) IsZero() bool {
	return inv.Text == "" && inv.Items == nil
}

// Lines returns one display line per carried item.
//
// Text listings start with a title and a rule, so parsing begins at the third
// line and skips blank lines and "===" rules.
func (inv Inventory) Lines() []string {
	if inv.Items != nil {
		lines := make([]string, 0, len(inv.Items))
		for _, it := range inv.Items {
			lines = append(lines, it.String())
		}
		return lines
	}

	if strings.TrimSpace(inv.Text) == EmptyInventoryText || inv.Text == "" {
		return []string{}
	}

	raw := strings.Split(inv.Text, "\n")
	lines := make([]string, 0, len(raw))
	for i := 2; i < len(raw); i++ {
		line := raw[i]
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "===") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Parse decodes a snapshot payload. A {"error": "..."} body is returned as an error.
func Parse(data []byte) (*Snapshot, error) {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse character: %w", err)
	}
	if probe.Error != "" {
		return nil, fmt.Errorf("server: %s", probe.Error)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse character: %w", err)
	}
	return &s, nil
}

// SlotName formats an equipment slot key for display: main_hand becomes Main Hand.
func SlotName(slot string) string {
	words := strings.Split(slot, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// slotOrder is the order the server defines equipment slots in.
var slotOrder = []string{"head", "chest", "legs", "feet", "hands", "main_hand", "off_hand"}

// Slots returns equipment slot keys with known slots first, in body order.
func (s *Snapshot) Slots() []string {
	seen := make(map[string]bool, len(s.Equipment))
	keys := make([]string, 0, len(s.Equipment))
	for _, k := range slotOrder {
		if _, ok := s.Equipment[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var extra []string
	for k := range s.Equipment {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
