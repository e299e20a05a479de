// Package dsl loads blueprint files into the syntax tree consumed by the
// composer.
//
// A blueprint is a set of YAML documents. Structure (models, entrypoints,
// actions) is plain YAML; filters, setters and other expressions are strings
// in JavaScript expression syntax, parsed with the goja parser. Context
// variables are written with a leading "@" (for example "@auth.id").
package dsl

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
)

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml"}

// LoadDir loads every blueprint file in dir, in lexical order, and merges
// them into one document. Subdirectories are not traversed.
func LoadDir(dir string) (*ast.Document, error) {
	files, err := BlueprintFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, alerr.New(alerr.ErrBlueprintInvalid, "no blueprint files found").
			With("dir", dir).
			WithHelp("blueprint files end in .yaml or .yml")
	}
	doc := &ast.Document{}
	for _, f := range files {
		part, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		doc.Merge(part)
	}
	return doc, nil
}

// BlueprintFiles lists the blueprint files of dir in lexical order.
func BlueprintFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrBlueprintInvalid, err, "failed to read blueprint directory").
			With("dir", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if hasBlueprintExt(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func hasBlueprintExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile loads one blueprint file.
func LoadFile(path string) (*ast.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrBlueprintInvalid, err, "failed to read blueprint file").
			With("file", path)
	}
	return ParseBlueprint(data, path)
}

// ParseBlueprint parses blueprint source. filename is only used for
// positions. A file may hold several YAML documents separated by "---".
func ParseBlueprint(data []byte, filename string) (*ast.Document, error) {
	doc := &ast.Document{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	d := &decoder{file: filename}
	for {
		var root yaml.Node
		err := dec.Decode(&root)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrBlueprintSyntax, err, "invalid YAML").WithFile(filename, 0)
		}
		if len(root.Content) == 0 {
			continue
		}
		part, err := d.document(root.Content[0])
		if err != nil {
			return nil, err
		}
		doc.Merge(part)
	}
	return doc, nil
}

func (d *decoder) document(n *yaml.Node) (*ast.Document, error) {
	entries, err := d.mapping(n, "blueprint")
	if err != nil {
		return nil, err
	}
	if err := d.checkKeys(entries, "blueprint",
		"models", "apis", "entrypoints", "populators", "runtimes", "generators", "authenticator"); err != nil {
		return nil, err
	}

	doc := &ast.Document{}
	for _, e := range entries {
		switch e.key {
		case "models":
			doc.Models, err = d.models(e.val)
		case "apis":
			var apis []*ast.API
			apis, err = d.apis(e.val)
			doc.APIs = append(doc.APIs, apis...)
		case "entrypoints":
			api := &ast.API{Pos: d.pos(e.kn)}
			api.Entrypoints, err = d.entrypoints(e.val)
			doc.APIs = append(doc.APIs, api)
		case "populators":
			doc.Populators, err = d.populators(e.val)
		case "runtimes":
			doc.Runtimes, err = d.runtimes(e.val)
		case "generators":
			doc.Generators, err = d.generators(e.val)
		case "authenticator":
			doc.Authenticator, err = d.authenticator(e.kn, e.val)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}
