// Package quotes is the localized text store. All user-facing texts, keyword
// sets and parser pattern tables live in a JSON tree; the code only addresses
// them by slash-separated paths. Swapping the JSON file swaps the language.
package quotes

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/pkg/errors"

	_ "embed"
)

//go:embed quotes.json
var embeddedQuotes []byte

// PathError reports a lookup path that does not lead to usable template data.
// A missing path is a configuration error, never silently defaulted.
type PathError struct {
	Path string
	Node string
	Want string
}

func (e *PathError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("invalid quote path %q: node %q does not exist", e.Path, e.Node)
	}
	return fmt.Sprintf("quote path %q does not lead to a %s", e.Path, e.Want)
}

// Server serves localized texts from a JSON tree loaded once at startup.
type Server struct {
	root map[string]any
}

// Load reads the quote tree from the given file, or the embedded default
// when file is empty.
func Load(file string) (*Server, error) {
	data := embeddedQuotes
	if file != "" {
		fileData, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read quotes file %q", file)
		}
		data = fileData
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	root := map[string]any{}
	if err := dec.Decode(&root); err != nil {
		return nil, errors.Wrap(err, "failed to parse quotes")
	}
	return &Server{root: root}, nil
}

// Text returns a random alternative from the list at the given path.
func (s *Server) Text(path string) (string, error) {
	choices, err := s.List(path)
	if err != nil {
		return "", err
	}
	return choices[rand.Intn(len(choices))], nil
}

// Textf is Text followed by Sprintf with the given arguments.
func (s *Server) Textf(path string, args ...any) (string, error) {
	text, err := s.Text(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(text, args...), nil
}

// List returns all alternatives at the given path. A node holding an object
// may provide its alternatives under a "default" key.
func (s *Server) List(path string) ([]string, error) {
	node, err := s.query(path)
	if err != nil {
		return nil, err
	}

	if obj, ok := node.(map[string]any); ok {
		def, ok := obj["default"]
		if !ok {
			return nil, &PathError{Path: path, Want: "list of strings"}
		}
		node = def
	}

	raw, ok := node.([]any)
	if !ok || len(raw) == 0 {
		return nil, &PathError{Path: path, Want: "list of strings"}
	}
	list := make([]string, 0, len(raw))
	for _, entry := range raw {
		str, ok := entry.(string)
		if !ok {
			return nil, &PathError{Path: path, Want: "list of strings"}
		}
		list = append(list, str)
	}
	return list, nil
}

// IntMap returns the pattern-to-magnitude table at the given path.
func (s *Server) IntMap(path string) (map[string]int, error) {
	node, err := s.query(path)
	if err != nil {
		return nil, err
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return nil, &PathError{Path: path, Want: "table of numbers"}
	}

	table := make(map[string]int, len(obj))
	for key, value := range obj {
		num, ok := value.(json.Number)
		if !ok {
			return nil, &PathError{Path: path, Want: "table of numbers"}
		}
		n, err := num.Int64()
		if err != nil {
			return nil, &PathError{Path: path, Want: "table of numbers"}
		}
		table[key] = int(n)
	}
	return table, nil
}

// Requirements lists the paths a component consumes, checked once at startup.
type Requirements struct {
	Lists []string
	Maps  []string
}

// Validate resolves every required path so a broken template file fails the
// process at load time instead of mid-conversation.
func (s *Server) Validate(reqs ...Requirements) error {
	for _, req := range reqs {
		for _, path := range req.Lists {
			if _, err := s.List(path); err != nil {
				return err
			}
		}
		for _, path := range req.Maps {
			if _, err := s.IntMap(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) query(path string) (any, error) {
	var node any = s.root
	for _, part := range strings.Split(path, "/") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, &PathError{Path: path, Node: part}
		}
		next, ok := obj[part]
		if !ok {
			return nil, &PathError{Path: path, Node: part}
		}
		node = next
	}
	return node, nil
}
