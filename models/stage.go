package models

import (
	"encoding/json"
	"fmt"
)

// Stage is one phase of the tournament. Stages only move forward.
type Stage int

const (
	StageQualifiers Stage = iota
	StageRoundRobin
	StageKnockout
	StageChampion
)

var stageNames = map[Stage]string{
	StageQualifiers: "Qualifiers",
	StageRoundRobin: "Round Robin",
	StageKnockout:   "Knockout",
	StageChampion:   "Champion",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Next returns the stage that follows s. The final stage has no successor.
func (s Stage) Next() (Stage, bool) {
	if s >= StageChampion || s < StageQualifiers {
		return s, false
	}
	return s + 1, true
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStage accepts the display name of a stage.
func ParseStage(name string) (Stage, error) {
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}
