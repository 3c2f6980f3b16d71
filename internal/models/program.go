package models

import (
	"errors"
	"strings"
)

// Program is a top-level partition of the catalog.
type Program string

const (
	ProgramPharmD Program = "PharmD"
	ProgramPhD    Program = "PhD"
)

// ErrUnknownProgram is returned by ParseProgram for values outside the closed set.
var ErrUnknownProgram = errors.New("unknown program")

// Programs lists every program in display order.
func Programs() []Program {
	return []Program{ProgramPharmD, ProgramPhD}
}

// ParseProgram matches case-insensitively against the known programs.
func ParseProgram(raw string) (Program, error) {
	for _, p := range Programs() {
		if strings.EqualFold(strings.TrimSpace(raw), string(p)) {
			return p, nil
		}
	}
	return "", ErrUnknownProgram
}

func (p Program) Valid() bool {
	_, err := ParseProgram(string(p))
	return err == nil
}

func (p Program) String() string { return string(p) }
