// Package source builds a BizModel from a packet: a JSON document naming the
// datasets to load, where each comes from, the model tags and the steps to run
// afterwards.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/asaidimu/go-dataopt/core/pipeline"
	"github.com/asaidimu/go-dataopt/core/query"
)

// SourceType names where a dataset is loaded from.
type SourceType string

const (
	TypeJSON   SourceType = "json"
	TypeCSV    SourceType = "csv"
	TypeSQLite SourceType = "sqlite"
	TypeInline SourceType = "inline"
)

// DataSetDefinition describes one dataset of a packet.
//
// json and csv read Path; RawStrings keeps csv cells as text. sqlite runs Query against DatabaseCode, or reads
// Table filtered by Filter when Query is blank. inline takes Data as is.
type DataSetDefinition struct {
	Name         string          `json:"name"`
	Type         SourceType      `json:"type"`
	Main         bool            `json:"main,omitempty"`
	Path         string          `json:"path,omitempty"`
	Delimiter    string          `json:"delimiter,omitempty"`
	RawStrings   bool            `json:"rawStrings,omitempty"`
	DatabaseCode string          `json:"databaseCode,omitempty"`
	Query        string          `json:"query,omitempty"`
	Table        string          `json:"table,omitempty"`
	Filter       *query.QueryDSL `json:"filter,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Validate reports the first missing field the source type needs.
func (d DataSetDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("dataset name is required")
	}
	switch d.Type {
	case TypeJSON, TypeCSV:
		if d.Path == "" {
			return fmt.Errorf("dataset %s: %s source needs a path", d.Name, d.Type)
		}
	case TypeSQLite:
		if d.DatabaseCode == "" {
			return fmt.Errorf("dataset %s: sqlite source needs a databaseCode", d.Name)
		}
		if d.Query == "" && d.Table == "" {
			return fmt.Errorf("dataset %s: sqlite source needs a query or a table", d.Name)
		}
	case TypeInline:
		if len(d.Data) == 0 {
			return fmt.Errorf("dataset %s: inline source needs data", d.Name)
		}
	default:
		return fmt.Errorf("dataset %s: unknown source type %q", d.Name, d.Type)
	}
	return nil
}

// Packet is the definition of a whole job.
type Packet struct {
	Name     string              `json:"name"`
	ModelTag map[string]any      `json:"modelTag,omitempty"`
	DataSets []DataSetDefinition `json:"dataSets"`
	Steps    []pipeline.Step     `json:"steps,omitempty"`
}

// StepList returns the packet steps.
func (p *Packet) StepList() pipeline.StepList {
	return pipeline.StepList{Steps: p.Steps}
}

// ParsePacket decodes and validates a packet document.
func ParsePacket(data []byte) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse packet: %w", err)
	}
	seen := make(map[string]bool, len(p.DataSets))
	for _, def := range p.DataSets {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("dataset %s is defined twice", def.Name)
		}
		seen[def.Name] = true
	}
	return &p, nil
}

// ReadPacket reads and parses the packet file at path.
func ReadPacket(path string) (*Packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read packet: %w", err)
	}
	return ParsePacket(data)
}
