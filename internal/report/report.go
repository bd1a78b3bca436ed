// Package report renders a discovery result for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Service describes the matched service.
type Service struct {
	UUID        string `json:"uuid" yaml:"uuid"`
	StartHandle string `json:"start_handle" yaml:"start_handle"`
	EndHandle   string `json:"end_handle" yaml:"end_handle"`
}

// Characteristic is one entry of the handle map.
type Characteristic struct {
	UUID        string   `json:"uuid" yaml:"uuid"`
	Handle      string   `json:"handle" yaml:"handle"`
	ValueHandle string   `json:"value_handle" yaml:"value_handle"`
	Properties  []string `json:"properties" yaml:"properties"`
}

// Map is the rendered form of a discovery Result. Characteristics are keyed
// by value handle in discovery order.
type Map struct {
	Address         string                                           `json:"address" yaml:"address"`
	Service         Service                                          `json:"service" yaml:"service"`
	Characteristics *orderedmap.OrderedMap[string, Characteristic] `json:"characteristics" yaml:"characteristics"`
}

// FromResult converts res.
func FromResult(res central.Result) Map {
	m := Map{
		Address: res.Address,
		Service: Service{
			UUID:        device.UUIDString(res.Service.UUID),
			StartHandle: hexHandle(res.Service.Start),
			EndHandle:   hexHandle(res.Service.End),
		},
		Characteristics: orderedmap.New[string, Characteristic](),
	}
	for _, c := range res.Characteristics {
		props := device.PropertyNames(c.Properties)
		if props == nil {
			props = []string{}
		}
		m.Characteristics.Set(hexHandle(c.ValueHandle), Characteristic{
			UUID:        device.UUIDString(c.UUID),
			Handle:      hexHandle(c.Handle),
			ValueHandle: hexHandle(c.ValueHandle),
			Properties:  props,
		})
	}
	return m
}

// Render writes res to w in the given format.
func Render(w io.Writer, res central.Result, format Format) error {
	m := FromResult(res)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		return renderTable(w, m)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, m Map) error {
	title := color.New(color.Bold, color.FgCyan)

	if _, err := title.Fprintf(w, "Service %s", m.Service.UUID); err != nil {
		return err
	}
	fmt.Fprintf(w, " [%s..%s] on %s\n", m.Service.StartHandle, m.Service.EndHandle, m.Address)

	if m.Characteristics.Len() == 0 {
		_, err := fmt.Fprintln(w, "  (no characteristics)")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	// no colour below: escape codes skew tabwriter widths
	fmt.Fprintln(tw, "  HANDLE\tVALUE\tUUID\tPROPERTIES")
	for pair := m.Characteristics.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Value
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Handle, c.ValueHandle, c.UUID, strings.Join(c.Properties, ","))
	}
	return tw.Flush()
}

func hexHandle(h uint16) string {
	return fmt.Sprintf("0x%04x", h)
}
