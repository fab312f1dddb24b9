package main

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/hapkit/hap-go/pkg/hap"
)

// funcMap provides helper functions available to all templates.
var funcMap = template.FuncMap{
	"quote":       func(s string) string { return fmt.Sprintf("%q", s) },
	"goType":      goType,
	"getter":      getter,
	"formatConst": formatConst,
	"permExpr":    permExpr,
	"canRead":     func(p hap.Perm) bool { return p.CanRead() },
	"canWrite":    func(p hap.Perm) bool { return p.CanWrite() },
	"accessor":    func(svc string, c CharSpec) accessorData { return accessorData{Svc: svc, CharSpec: c} },
	"names":       names,
}

// templates holds all parsed code generation templates.
var templates = template.Must(template.New("").Funcs(funcMap).Parse(
	fileTmpl +
		serviceTmpl +
		accessorsTmpl +
		optionalTmpl,
))

// --- Template data types ---

type fileData struct {
	Package  string
	Services []ServiceSpec
	Custom   []CharSpec
}

type accessorData struct {
	Svc string
	CharSpec
}

// --- Helpers ---

func goType(f hap.Format) string {
	switch {
	case f == hap.FormatBool:
		return "bool"
	case f.IsInteger():
		return "int"
	case f == hap.FormatFloat:
		return "float64"
	case f == hap.FormatString:
		return "string"
	default:
		return "any"
	}
}

func getter(f hap.Format) string {
	switch {
	case f == hap.FormatBool:
		return "GetBool"
	case f.IsInteger():
		return "GetInt"
	case f == hap.FormatFloat:
		return "GetFloat"
	case f == hap.FormatString:
		return "GetString"
	default:
		return "Get"
	}
}

var formatConsts = map[hap.Format]string{
	hap.FormatBool:   "hap.FormatBool",
	hap.FormatInt:    "hap.FormatInt",
	hap.FormatUint8:  "hap.FormatUint8",
	hap.FormatUint16: "hap.FormatUint16",
	hap.FormatUint32: "hap.FormatUint32",
	hap.FormatUint64: "hap.FormatUint64",
	hap.FormatFloat:  "hap.FormatFloat",
	hap.FormatString: "hap.FormatString",
	hap.FormatTLV8:   "hap.FormatTLV8",
	hap.FormatData:   "hap.FormatData",
}

func formatConst(f hap.Format) string {
	if c, ok := formatConsts[f]; ok {
		return c
	}
	return fmt.Sprintf("hap.Format(%q)", f)
}

var permConsts = []struct {
	perm hap.Perm
	name string
}{
	{hap.PermRead, "hap.PermRead"},
	{hap.PermWrite, "hap.PermWrite"},
	{hap.PermNotify, "hap.PermNotify"},
	{hap.PermHidden, "hap.PermHidden"},
	{hap.PermTimedWrite, "hap.PermTimedWrite"},
}

func permExpr(p hap.Perm) string {
	var parts []string
	for _, pc := range permConsts {
		if p&pc.perm != 0 {
			parts = append(parts, pc.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " | ")
}

func names(cs []CharSpec) string {
	quoted := make([]string, len(cs))
	for i, c := range cs {
		quoted[i] = fmt.Sprintf("%q", c.Name)
	}
	return strings.Join(quoted, ", ")
}

// --- Template definitions ---

const fileTmpl = `{{define "file" -}}
// Code generated by hap-codegen. DO NOT EDIT.

package {{.Package}}

import (
	"context"

	"github.com/hapkit/hap-go/pkg/catalog"
	"github.com/hapkit/hap-go/pkg/hap"
)

// newCharacteristic builds a characteristic holding its default value.
func newCharacteristic(name string) (*hap.Characteristic, error) {
{{- if .Custom}}
	switch name {
{{- range .Custom}}
	case {{quote .Name}}:
		return hap.NewCharacteristic({{quote .Name}}, nil, hap.Props{Format: {{formatConst .Format}}, Perms: {{permExpr .Perms}}})
{{- end}}
	}
{{- end}}
	return catalog.Characteristic(name)
}
{{range .Services}}{{template "service" .}}{{end}}
{{- end}}`

const serviceTmpl = `{{define "service"}}
// {{.Name}} wraps a {{.Name}} service.
type {{.Name}} struct {
	*hap.Service
}

// New{{.Name}} creates a {{.Name}} service holding its required characteristics.
func New{{.Name}}(subtype string) (*{{.Name}}, error) {
	svc := hap.NewService({{quote .Name}}, "", subtype{{if .UUID}}, hap.WithServiceUUID({{quote .UUID}}){{end}})
	for _, name := range []string{ {{- names .Required -}} } {
		c, err := newCharacteristic(name)
		if err != nil {
			return nil, err
		}
		if err := svc.AddCharacteristic(c); err != nil {
			return nil, err
		}
	}
	return &{{.Name}}{Service: svc}, nil
}
{{$svc := .Name}}
{{- range .Required}}{{template "accessors" (accessor $svc .)}}{{end}}
{{- range .Optional}}{{template "optional" (accessor $svc .)}}{{template "accessors" (accessor $svc .)}}{{end}}
{{- end}}`

const accessorsTmpl = `{{define "accessors"}}
{{- if canRead .Perms}}
// {{.Name}} reads {{.Name}} as a controller.
func (s *{{.Svc}}) {{.Name}}(ctx context.Context) ({{goType .Format}}, error) {
	return s.{{getter .Format}}(ctx, {{quote .Name}})
}
{{end}}
{{- if canWrite .Perms}}
// Set{{.Name}} writes {{.Name}} as a controller.
func (s *{{.Svc}}) Set{{.Name}}(ctx context.Context, v {{goType .Format}}) error {
	return s.Set(ctx, {{quote .Name}}, v)
}
{{end}}
// Update{{.Name}} pushes a new {{.Name}} value from the accessory.
func (s *{{.Svc}}) Update{{.Name}}(v {{goType .Format}}) error {
	return s.Update({{quote .Name}}, v)
}
{{end}}`

const optionalTmpl = `{{define "optional"}}
// Add{{.Name}} adds the optional {{.Name}} characteristic.
func (s *{{.Svc}}) Add{{.Name}}() error {
	c, err := newCharacteristic({{quote .Name}})
	if err != nil {
		return err
	}
	return s.AddCharacteristic(c)
}
{{end}}`
