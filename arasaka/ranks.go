package arasaka

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	RankCivilian        = "Civilian"
	RankInitiate        = "Initiate"
	RankJuniorOperative = "Junior Operative"
	RankOperative       = "Operative"
	RankSpecialist      = "Specialist"
	RankSeniorAgent     = "Senior Agent"
	RankSergeant        = "Sergeant"

	// kickLabel is offered alongside the assignable ranks and removes the
	// member from the group instead of changing their role.
	kickLabel = "[KICK FROM GROUP] Remove/Exile User from Group"
)

var (
	ErrRankUnknown      = errors.New("rank not in hierarchy")
	ErrRankUnauthorized = errors.New("actor does not outrank target")
	ErrRankTerminal     = errors.New("no further rank exists")
)

// LadderRank is one step of the XP ladder.
type LadderRank struct {
	Name      string
	Threshold float64
}

// RankLadder is the ordered set of ranks reachable through XP, with
// strictly increasing cumulative thresholds. The last entry is terminal.
type RankLadder []LadderRank

// DefaultLadder returns the enlisted XP ladder.
func DefaultLadder() RankLadder {
	return RankLadder{
		{Name: RankInitiate, Threshold: 0},
		{Name: RankJuniorOperative, Threshold: 15},
		{Name: RankOperative, Threshold: 30},
		{Name: RankSpecialist, Threshold: 50},
		{Name: RankSeniorAgent, Threshold: 80},
		{Name: RankSergeant, Threshold: 120},
	}
}

func (l RankLadder) index(name string) int {
	return slices.IndexFunc(
		l, func(r LadderRank) bool {
			return r.Name == name
		},
	)
}

// Threshold returns the cumulative XP threshold for the given rank.
func (l RankLadder) Threshold(name string) (float64, bool) {
	i := l.index(name)
	if i < 0 {
		return 0, false
	}
	return l[i].Threshold, true
}

// Next returns the rank following name on the ladder. ok is false when
// name is not on the ladder, and terminal is true when name is the
// final rank.
func (l RankLadder) Next(name string) (next LadderRank, terminal bool, ok bool) {
	i := l.index(name)
	if i < 0 {
		return LadderRank{}, false, false
	}
	if i == len(l)-1 {
		return LadderRank{}, true, true
	}
	return l[i+1], false, true
}

// validate reports an error if thresholds aren't strictly increasing
func (l RankLadder) validate() error {
	for i := 1; i < len(l); i++ {
		if l[i].Threshold <= l[i-1].Threshold {
			return fmt.Errorf(
				"rank %q threshold %v must exceed %q threshold %v",
				l[i].Name, l[i].Threshold, l[i-1].Name, l[i-1].Threshold,
			)
		}
	}
	return nil
}

// QuotaTable maps a rank name to the weekly XP (WP) it must earn.
type QuotaTable map[string]float64

func DefaultQuotaTable() QuotaTable {
	return QuotaTable{
		RankInitiate:                     6,
		RankJuniorOperative:              6,
		RankOperative:                    6,
		RankSpecialist:                   6,
		RankSeniorAgent:                  6,
		RankSergeant:                     4,
		"Sergeant Major":                 4,
		"Commander":                      4,
		"Corporate Officer on Trial":     4,
		"Junior Corporate Field Officer": 4,
		"Corporate Field Officer":        4,
		"Senior Corporate Field Officer": 3,
		"Chief Corporate Field Officer":  2,
	}
}

// HierarchyRank is a group role, with the short code shown in labels.
type HierarchyRank struct {
	Name string
	Code string
}

// Label renders the rank the way group roles are displayed,
// like "[N-1] Sergeant".
func (r HierarchyRank) Label() string {
	if r.Code == "" {
		return r.Name
	}
	return fmt.Sprintf("[%s] %s", r.Code, r.Name)
}

// Hierarchy is the authority order of group ranks, highest first.
type Hierarchy []HierarchyRank

func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		{Name: "Big Boss of Arasaka", Code: "CH"},
		{Name: "Clan Leader", Code: "CL"},
		{Name: "Chief Executive Officer", Code: "H-3"},
		{Name: "Chief Executive Secretary", Code: "H-2"},
		{Name: "Board of Directors", Code: "H-1"},
		{Name: "Chief Corporate Field Officer", Code: "O-4"},
		{Name: "Senior Corporate Field Officer", Code: "O-3"},
		{Name: "Corporate Field Officer", Code: "O-2"},
		{Name: "Junior Corporate Field Officer", Code: "O-1"},
		{Name: "Corporate Officer on Trial", Code: "COOT"},
		{Name: "Commander", Code: "N-3"},
		{Name: "Command Sergeant", Code: "N-2"},
		{Name: RankSergeant, Code: "N-1"},
		{Name: RankSeniorAgent, Code: "A-5"},
		{Name: RankSpecialist, Code: "A-4"},
		{Name: RankOperative, Code: "A-3"},
		{Name: RankJuniorOperative, Code: "A-2"},
		{Name: RankInitiate, Code: "A-1"},
		{Name: RankCivilian},
	}
}

// Index returns the authority index of the rank (0 is highest), or -1.
func (h Hierarchy) Index(name string) int {
	return slices.IndexFunc(
		h, func(r HierarchyRank) bool {
			return r.Name == name
		},
	)
}

// authorize returns the indexes of actor and target, or an error if
// either is unknown or the actor does not strictly outrank the target.
func (h Hierarchy) authorize(actor, target string) (int, int, error) {
	actorIdx, targetIdx := h.Index(actor), h.Index(target)
	if actorIdx < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrRankUnknown, actor)
	}
	if targetIdx < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrRankUnknown, target)
	}
	if actorIdx >= targetIdx {
		return actorIdx, targetIdx, ErrRankUnauthorized
	}
	return actorIdx, targetIdx, nil
}

// NextRank returns the rank directly above target, as long as it is still
// strictly below actor. ErrRankUnauthorized and ErrRankTerminal are
// distinct outcomes.
func (h Hierarchy) NextRank(actor, target string) (string, error) {
	actorIdx, targetIdx, err := h.authorize(actor, target)
	if err != nil {
		return "", err
	}
	next := targetIdx - 1
	if next < 0 {
		return "", ErrRankTerminal
	}
	if next <= actorIdx {
		return "", ErrRankUnauthorized
	}
	return h[next].Name, nil
}

// BackRank returns the rank directly below target.
func (h Hierarchy) BackRank(actor, target string) (string, error) {
	_, targetIdx, err := h.authorize(actor, target)
	if err != nil {
		return "", err
	}
	back := targetIdx + 1
	if back >= len(h) {
		return "", ErrRankTerminal
	}
	return h[back].Name, nil
}

// CanAssign reports whether actor may move any member to rank.
func (h Hierarchy) CanAssign(actor, rank string) error {
	_, _, err := h.authorize(actor, rank)
	return err
}

// Assignable returns the labels of every rank strictly below actor,
// followed by the group removal option.
func (h Hierarchy) Assignable(actor string) []string {
	i := h.Index(actor)
	if i < 0 {
		return nil
	}
	labels := make([]string, 0, len(h)-i)
	for _, r := range h[i+1:] {
		labels = append(labels, r.Label())
	}
	return append(labels, kickLabel)
}

// RankForLabel maps a display label (or a bare rank name) back to the
// rank name.
func (h Hierarchy) RankForLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	for _, r := range h {
		if r.Label() == label || r.Name == label {
			return r.Name, true
		}
	}
	return "", false
}

// LabelFor returns the display label of a rank, or name itself if the
// rank isn't in the hierarchy.
func (h Hierarchy) LabelFor(name string) string {
	if i := h.Index(name); i >= 0 {
		return h[i].Label()
	}
	return name
}
