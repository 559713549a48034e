package mixin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/sdsl/spirv"
)

func TestRegisterOrUpdateReplaces(t *testing.T) {
	s := NewStorage()
	first := spirv.Buffer{1, 2, 3}
	second := spirv.Buffer{4, 5}

	s.RegisterOrUpdate("Lighting", first)
	s.RegisterOrUpdate("Lighting", second)

	m, ok := s.TryGet("Lighting")
	if !ok {
		t.Fatal("Lighting not found")
	}
	if !slices.Equal(m.Buffer, second) {
		t.Errorf("buffer = %v, want %v", m.Buffer, second)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestTryRegisterKeepsOriginal(t *testing.T) {
	s := NewStorage()
	original := spirv.Buffer{1, 2, 3}
	if !s.TryRegister("Lighting", original) {
		t.Fatal("first TryRegister failed")
	}
	if s.TryRegister("Lighting", spirv.Buffer{9}) {
		t.Error("TryRegister replaced an existing entry")
	}
	m, _ := s.TryGet("Lighting")
	if !slices.Equal(m.Buffer, original) {
		t.Errorf("buffer = %v, want %v", m.Buffer, original)
	}
}

func TestStorageCopiesBuffers(t *testing.T) {
	s := NewStorage()
	buf := spirv.Buffer{1, 2, 3}
	s.RegisterOrUpdate("A", buf)
	buf[0] = 42
	m, _ := s.TryGet("A")
	if m.Buffer[0] != 1 {
		t.Errorf("stored buffer changed with the caller's slice: %v", m.Buffer)
	}
}

func TestZeroStorage(t *testing.T) {
	var s Storage
	if _, ok := s.TryGet("A"); ok {
		t.Error("empty storage returned an entry")
	}
	if !s.TryRegister("A", spirv.Buffer{1}) {
		t.Error("TryRegister on zero Storage failed")
	}
	if got := s.Names(); !slices.Equal(got, []string{"A"}) {
		t.Errorf("Names = %v", got)
	}
}

func TestStorageConcurrent(t *testing.T) {
	s := NewStorage()
	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins = make(map[string]int)
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				name := fmt.Sprintf("M%d", i)
				if s.TryRegister(name, spirv.Buffer{uint32(w)}) {
					mu.Lock()
					wins[name]++
					mu.Unlock()
				}
				if _, ok := s.TryGet(name); !ok {
					t.Errorf("%s missing after registration", name)
				}
				s.RegisterOrUpdate(fmt.Sprintf("U%d", i), spirv.Buffer{uint32(w)})
			}
		}()
	}
	wg.Wait()

	for name, n := range wins {
		if n != 1 {
			t.Errorf("%s registered %d times", name, n)
		}
	}
	if len(wins) != 50 {
		t.Errorf("%d names registered, want 50", len(wins))
	}
	if s.Len() != 100 {
		t.Errorf("Len = %d, want 100", s.Len())
	}
}

func TestContentName(t *testing.T) {
	a := ContentName("Pass", "float4 main();", "vertex")
	if !strings.HasPrefix(a, "Pass@") || len(a) != len("Pass@")+2*contentHashLen {
		t.Errorf("ContentName = %q", a)
	}
	if b := ContentName("Pass", "float4 main();", "vertex"); a != b {
		t.Errorf("ContentName is not deterministic: %q vs %q", a, b)
	}
	tests := []struct {
		name  string
		parts []string
	}{
		{"Pass", []string{"float4 main();", "pixel"}},
		{"Other", []string{"float4 main();", "vertex"}},
		{"Pass", []string{"float4 main();vertex"}},
		{"Pass", nil},
	}
	for _, tt := range tests {
		if got := ContentName(tt.name, tt.parts...); got == a {
			t.Errorf("ContentName(%q, %q) collides with the base name", tt.name, tt.parts)
		}
	}
	if ContentName("x", "ab", "c") == ContentName("x", "a", "bc") {
		t.Error("part boundaries do not affect the name")
	}
}

func TestMapResolver(t *testing.T) {
	r := MapResolver{"Base": "shader Base {}"}
	src, err := r.LoadMixin("Base")
	if err != nil || src != "shader Base {}" {
		t.Errorf("LoadMixin(Base) = %q, %v", src, err)
	}
	if _, err := r.LoadMixin("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadMixin(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Base.sdsl"), []byte("\uFEFFshader Base {}"), 0o600); err != nil {
		t.Fatal(err)
	}
	// UTF-16 LE with byte order mark
	utf16 := []byte{0xFF, 0xFE}
	for _, c := range "shader Wide {}" {
		utf16 = append(utf16, byte(c), 0)
	}
	if err := os.WriteFile(filepath.Join(dir, "Wide.sdsl"), utf16, 0o600); err != nil {
		t.Fatal(err)
	}

	r := DirResolver{Dir: dir}
	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"Base", "shader Base {}", nil},
		{"Wide", "shader Wide {}", nil},
		{"Missing", "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := r.LoadMixin(tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if src != tt.want {
				t.Errorf("source = %q, want %q", src, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "..", "../Base", `a\b`} {
		if _, err := r.LoadMixin(bad); err == nil {
			t.Errorf("LoadMixin(%q) succeeded", bad)
		}
	}
}

func TestChain(t *testing.T) {
	c := Chain{MapResolver{"A": "a"}, MapResolver{"A": "shadowed", "B": "b"}}
	for name, want := range map[string]string{"A": "a", "B": "b"} {
		if got, err := c.LoadMixin(name); err != nil || got != want {
			t.Errorf("LoadMixin(%s) = %q, %v", name, got, err)
		}
	}
	broken := errors.New("disk on fire")
	c = Chain{ResolverFunc(func(string) (string, error) { return "", broken }), MapResolver{"A": "a"}}
	if _, err := c.LoadMixin("A"); !errors.Is(err, broken) {
		t.Errorf("error = %v, want %v", err, broken)
	}
}

func ExampleStorage() {
	cache := NewStorage()
	name := ContentName("Pass", "shader Pass {}")
	cache.RegisterOrUpdate(name, spirv.Buffer{0x07230203})
	fmt.Println(cache.TryRegister(name, spirv.Buffer{0}))
	m, _ := cache.TryGet(name)
	fmt.Printf("%#x\n", m.Buffer[0])
	// Output:
	// false
	// 0x7230203
}
