package session

import (
	"sort"

	"github.com/kilianp07/fieldassign/core/model"
)

// Preset is a quick action. Rule is applied as is; Instruction is only the
// text recorded in the chat history and the run log.
type Preset struct {
	Instruction string                `json:"instruction"`
	Rule        model.InstructionKind `json:"rule"`
}

// Presets maps the quick-action names to what they run.
var Presets = map[string]Preset{
	"novice-care": {Instruction: "Give the easy sites to the novice first", Rule: model.InstructionNovice},
	"trouble":     {Instruction: "A trouble was reported, reset the assignment", Rule: model.InstructionTrouble},
	"rebalance":   {Instruction: "Rebalance the assignment", Rule: model.InstructionDefault},
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns the preset registered under name.
func LookupPreset(name string) (Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return Preset{}, ErrUnknownPreset
	}
	return p, nil
}
