package memory

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"gopkg.in/yaml.v3"
)

// ContentRepo is an in-memory content tree. It is safe for concurrent use.
type ContentRepo struct {
	mu       sync.RWMutex
	nodes    map[string]map[string]any
	children map[string][]string
}

// NewContentRepo creates an empty tree holding only the root node.
func NewContentRepo() *ContentRepo {
	return &ContentRepo{
		nodes:    map[string]map[string]any{"/": {}},
		children: make(map[string][]string),
	}
}

// seedFile is the YAML layout accepted by LoadSeedFile.
type seedFile struct {
	Nodes []struct {
		Path       string         `yaml:"path"`
		Properties map[string]any `yaml:"properties"`
	} `yaml:"nodes"`
}

// ReadSeedFile parses a YAML file listing nodes in order:
//
//	nodes:
//	  - path: /content/site/page
//	    properties:
//	      text: see /content/site/other
func ReadSeedFile(file string) ([]*entity.Node, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", file, err)
	}
	nodes := make([]*entity.Node, 0, len(seed.Nodes))
	for _, n := range seed.Nodes {
		props := make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = entity.NormalizeValue(v)
		}
		nodes = append(nodes, &entity.Node{Path: n.Path, Properties: props})
	}
	return nodes, nil
}

// Seed writes the nodes of a seed file into any content repository.
func Seed(ctx context.Context, repo repository.ContentRepository, file string) (int, error) {
	nodes, err := ReadSeedFile(file)
	if err != nil {
		return 0, err
	}
	for _, n := range nodes {
		if err := repo.PutNode(ctx, n); err != nil {
			return 0, fmt.Errorf("seed %s: %w", n.Path, err)
		}
	}
	return len(nodes), nil
}

// LoadSeedFile fills the tree from a seed file.
func (r *ContentRepo) LoadSeedFile(ctx context.Context, file string) error {
	_, err := Seed(ctx, r, file)
	return err
}

func (r *ContentRepo) Ping(_ context.Context) error {
	return nil
}

func (r *ContentRepo) Exists(_ context.Context, p string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[clean(p)]
	return ok, nil
}

func (r *ContentRepo) GetNode(_ context.Context, p string) (*entity.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p = clean(p)
	props, ok := r.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}
	return &entity.Node{Path: p, Properties: copyProperties(props)}, nil
}

func (r *ContentRepo) ListChildren(_ context.Context, p string) ([]*entity.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p = clean(p)
	if _, ok := r.nodes[p]; !ok {
		return nil, fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}
	kids := r.children[p]
	out := make([]*entity.Node, 0, len(kids))
	for _, c := range kids {
		out = append(out, &entity.Node{Path: c, Properties: copyProperties(r.nodes[c])})
	}
	return out, nil
}

func (r *ContentRepo) SetProperty(_ context.Context, p, name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p = clean(p)
	props, ok := r.nodes[p]
	if !ok {
		return fmt.Errorf("%s: %w", p, repository.ErrNodeNotFound)
	}
	props[name] = copyValue(value)
	return nil
}

func (r *ContentRepo) PutNode(_ context.Context, node *entity.Node) error {
	p := clean(node.Path)
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("node path must be absolute, got %q", node.Path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(p)
	r.nodes[p] = copyProperties(node.Properties)
	return nil
}

func (r *ContentRepo) DeleteNode(_ context.Context, p string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p = clean(p)
	if _, ok := r.nodes[p]; !ok || p == "/" {
		return nil
	}
	r.deleteSubtree(p)
	parent := path.Dir(p)
	kids := r.children[parent]
	for i, c := range kids {
		if c == p {
			r.children[parent] = append(kids[:i:i], kids[i+1:]...)
			break
		}
	}
	return nil
}

// ensure creates p and its missing ancestors. Callers hold the write lock.
func (r *ContentRepo) ensure(p string) {
	if _, ok := r.nodes[p]; ok {
		return
	}
	parent := path.Dir(p)
	r.ensure(parent)
	r.nodes[p] = map[string]any{}
	r.children[parent] = append(r.children[parent], p)
}

func (r *ContentRepo) deleteSubtree(p string) {
	for _, c := range r.children[p] {
		r.deleteSubtree(c)
	}
	delete(r.children, p)
	delete(r.nodes, p)
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

func copyProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	if list, ok := v.([]string); ok {
		return append([]string(nil), list...)
	}
	return v
}
