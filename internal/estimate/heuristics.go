// Package estimate supplies deterministic energy figures for contract calls
// when no backend can estimate them live.
package estimate

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/web3-frozen/tron-source-router/internal/tron"
)

//go:embed default.yaml
var defaultTable []byte

// RecipientStatus describes what is believed about a transfer destination.
type RecipientStatus string

const (
	RecipientUnknown    RecipientStatus = "unknown"
	RecipientHasBalance RecipientStatus = "has-balance"
	RecipientEmpty      RecipientStatus = "empty"
)

// Table is the on-disk shape of the heuristic data.
type Table struct {
	EnergyPriceSun int64        `yaml:"energyPriceSun"`
	Base           int64        `yaml:"base"`
	PerParameter   int64        `yaml:"perParameter"`
	Contracts      []Contract   `yaml:"contracts"`
	Patterns       []Pattern    `yaml:"patterns"`
	Recipients     RecipientSet `yaml:"recipients"`
}

type Contract struct {
	Name      string                  `yaml:"name"`
	Address   string                  `yaml:"address"`
	Functions map[string]FunctionCost `yaml:"functions"`
}

// FunctionCost is either a flat Energy figure or a HasBalance/NewRecipient
// pair.
type FunctionCost struct {
	Energy       int64 `yaml:"energy"`
	HasBalance   int64 `yaml:"hasBalance"`
	NewRecipient int64 `yaml:"newRecipient"`
}

func (f FunctionCost) branches() bool { return f.HasBalance > 0 || f.NewRecipient > 0 }

type Pattern struct {
	Contains []string `yaml:"contains"`
	Energy   int64    `yaml:"energy"`
}

type RecipientSet struct {
	HasBalance []string `yaml:"hasBalance"`
	Empty      []string `yaml:"empty"`
}

// Input describes one call to estimate.
type Input struct {
	Function  string
	Params    []tron.Param
	Contract  string
	Recipient string
	// Status overrides the table's recipient lists when not unknown.
	Status RecipientStatus
}

// Result is a heuristic figure plus the rule that produced it.
type Result struct {
	Energy          int64
	Rule            string
	RecipientStatus RecipientStatus
}

// Heuristics is the compiled, immutable form of a Table.
type Heuristics struct {
	table      Table
	contracts  map[string]Contract
	hasBalance map[string]struct{}
	empty      map[string]struct{}
}

// Default returns the embedded table. It panics only if the embedded data is
// broken, which the package tests guard against.
func Default() *Heuristics {
	h, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded heuristics table: %v", err))
	}
	return h
}

// Load reads a table from path, or returns Default when path is empty.
func Load(path string) (*Heuristics, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read heuristics table: %w", err)
	}
	return Parse(b)
}

// Parse compiles a YAML table.
func Parse(b []byte) (*Heuristics, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode heuristics table: %w", err)
	}
	return New(t)
}

// New compiles t, validating every address it mentions.
func New(t Table) (*Heuristics, error) {
	if t.Base <= 0 {
		return nil, errors.New("heuristics table: base must be positive")
	}
	if t.EnergyPriceSun <= 0 {
		t.EnergyPriceSun = 420
	}

	h := &Heuristics{
		table:      t,
		contracts:  make(map[string]Contract, len(t.Contracts)),
		hasBalance: make(map[string]struct{}, len(t.Recipients.HasBalance)),
		empty:      make(map[string]struct{}, len(t.Recipients.Empty)),
	}
	for _, c := range t.Contracts {
		key, err := addressKey(c.Address)
		if err != nil {
			return nil, fmt.Errorf("heuristics table: contract %s: %w", c.Name, err)
		}
		fns := make(map[string]FunctionCost, len(c.Functions))
		for name, cost := range c.Functions {
			fns[strings.ToLower(name)] = cost
		}
		c.Functions = fns
		h.contracts[key] = c
	}
	for _, a := range t.Recipients.HasBalance {
		key, err := addressKey(a)
		if err != nil {
			return nil, fmt.Errorf("heuristics table: recipient: %w", err)
		}
		h.hasBalance[key] = struct{}{}
	}
	for _, a := range t.Recipients.Empty {
		key, err := addressKey(a)
		if err != nil {
			return nil, fmt.Errorf("heuristics table: recipient: %w", err)
		}
		h.empty[key] = struct{}{}
	}
	return h, nil
}

func addressKey(s string) (string, error) {
	addr, err := tron.ParseAddress(s)
	if err != nil {
		return "", err
	}
	return tron.Hex(addr), nil
}

// EnergyPriceSun is the fallback price per energy unit.
func (h *Heuristics) EnergyPriceSun() int64 { return h.table.EnergyPriceSun }

// IsKnownContract reports whether contract has a dedicated table entry.
func (h *Heuristics) IsKnownContract(contract string) bool {
	key, err := addressKey(contract)
	if err != nil {
		return false
	}
	_, ok := h.contracts[key]
	return ok
}

// BranchesOnRecipient reports whether the estimate for fn on contract depends
// on the recipient's status.
func (h *Heuristics) BranchesOnRecipient(fn, contract string) bool {
	key, err := addressKey(contract)
	if err != nil {
		return false
	}
	c, ok := h.contracts[key]
	if !ok {
		return false
	}
	cost, ok := c.Functions[strings.ToLower(tron.FunctionName(fn))]
	return ok && cost.branches()
}

// RecipientStatus looks recipient up in the table's known-address lists.
func (h *Heuristics) RecipientStatus(recipient string) RecipientStatus {
	key, err := addressKey(recipient)
	if err != nil {
		return RecipientUnknown
	}
	if _, ok := h.hasBalance[key]; ok {
		return RecipientHasBalance
	}
	if _, ok := h.empty[key]; ok {
		return RecipientEmpty
	}
	return RecipientUnknown
}

// FallbackEstimate returns the heuristic energy for a call. It performs no
// I/O and always returns a positive integer.
func (h *Heuristics) FallbackEstimate(fn string, params []tron.Param, contract, recipient string) int64 {
	return h.Estimate(Input{Function: fn, Params: params, Contract: contract, Recipient: recipient}).Energy
}

// Estimate is FallbackEstimate with the rule that matched.
func (h *Heuristics) Estimate(in Input) Result {
	name := strings.ToLower(tron.FunctionName(in.Function))
	recipient := in.Recipient
	if recipient == "" {
		recipient = RecipientParam(in.Function, in.Params)
	}
	status := in.Status
	if status == "" || status == RecipientUnknown {
		status = h.RecipientStatus(recipient)
	}

	if key, err := addressKey(in.Contract); err == nil {
		if c, ok := h.contracts[key]; ok {
			if cost, ok := c.Functions[name]; ok {
				if cost.branches() {
					if status == RecipientHasBalance && cost.HasBalance > 0 {
						return Result{Energy: cost.HasBalance, Rule: "contract:" + c.Name + ":" + name + ":has-balance", RecipientStatus: status}
					}
					// Unknown recipients are priced as new ones.
					e := cost.NewRecipient
					if e <= 0 {
						e = cost.HasBalance
					}
					return Result{Energy: e, Rule: "contract:" + c.Name + ":" + name + ":new-recipient", RecipientStatus: status}
				}
				if cost.Energy > 0 {
					return Result{Energy: cost.Energy, Rule: "contract:" + c.Name + ":" + name, RecipientStatus: status}
				}
			}
		}
	}

	for _, p := range h.table.Patterns {
		for _, sub := range p.Contains {
			if sub != "" && strings.Contains(name, strings.ToLower(sub)) {
				return Result{Energy: p.Energy, Rule: "pattern:" + sub, RecipientStatus: status}
			}
		}
	}

	return Result{
		Energy:          h.table.Base + h.table.PerParameter*int64(len(in.Params)),
		Rule:            "base",
		RecipientStatus: status,
	}
}

// CostTRX converts an energy figure to TRX at priceSun per unit.
func CostTRX(energy, priceSun int64) float64 {
	return tron.SunToTRX(energy * priceSun)
}

// RecipientParam picks the transfer destination out of a call's parameters:
// the second address for transferFrom(from, to, value), the first otherwise.
func RecipientParam(fn string, params []tron.Param) string {
	skip := 0
	if strings.EqualFold(tron.FunctionName(fn), "transferFrom") {
		skip = 1
	}
	for _, p := range params {
		if !strings.EqualFold(strings.TrimSpace(p.Type), "address") {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		return p.Value
	}
	return ""
}
