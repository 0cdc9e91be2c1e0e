package sandbox

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdefgh", 5, "abcde" + outputTruncated},
		{"runes", "héllo wörld", 4, "héll" + outputTruncated},
		{"no cap", "abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max, outputTruncated); got != tt.want {
				t.Fatalf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateKeepsExactlyCapCharacters(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("x", 6000)
	got := Truncate(in, 5000, outputTruncated)
	body := strings.TrimSuffix(got, outputTruncated)
	if body == got {
		t.Fatal("suffix missing")
	}
	if utf8.RuneCountInString(body) != 5000 {
		t.Fatalf("kept %d characters, want 5000", utf8.RuneCountInString(body))
	}
}

func TestFinishPrefersStdout(t *testing.T) {
	t.Parallel()

	l := DefaultLimits()
	if r := finish([]byte("out"), []byte("err"), 0, l); r.Output != "out" || !r.Success {
		t.Fatalf("finish() = %+v", r)
	}
	if r := finish(nil, []byte("Traceback"), 1, l); r.Output != "Traceback" || r.Success || r.ExitCode != 1 {
		t.Fatalf("finish() = %+v", r)
	}

	l.MaxOutput = 3
	if r := finish(nil, []byte("abcdef"), 1, l); r.Output != "abc"+errorTruncated {
		t.Fatalf("stderr truncation = %q", r.Output)
	}
}

func TestCapBufferDropsOverflow(t *testing.T) {
	t.Parallel()

	b := newCapBuffer(2)
	n, err := b.Write([]byte(strings.Repeat("a", 100)))
	if err != nil || n != 100 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if len(b.Bytes()) != 3*utf8.UTFMax {
		t.Fatalf("kept %d bytes", len(b.Bytes()))
	}
	if got := Truncate(string(b.Bytes()), 2, outputTruncated); got != "aa"+outputTruncated {
		t.Fatalf("truncation after cap = %q", got)
	}
}

func TestDockerHostConfigIsLockedDown(t *testing.T) {
	t.Parallel()

	d := &Docker{limits: DefaultLimits(), opts: DockerOptions{Runtime: "runsc", MemoryBytes: 128 << 20, NanoCPUs: 5e8, PidsLimit: 32}}
	hc := d.hostConfig("/tmp/x", true)

	if hc.NetworkMode != "none" || !hc.ReadonlyRootfs || hc.Runtime != "runsc" {
		t.Fatalf("host config = %+v", hc)
	}
	if len(hc.CapDrop) != 1 || hc.CapDrop[0] != "ALL" {
		t.Fatalf("CapDrop = %v", hc.CapDrop)
	}
	if hc.Resources.PidsLimit == nil || *hc.Resources.PidsLimit != 32 || hc.Resources.Memory != 128<<20 {
		t.Fatalf("resources = %+v", hc.Resources)
	}
	if len(hc.Mounts) != 1 || !hc.Mounts[0].ReadOnly || hc.Mounts[0].Target != workdir {
		t.Fatalf("mounts = %+v", hc.Mounts)
	}
	// output is read from the attach stream; the daemon must not persist it
	if hc.LogConfig.Type != "none" {
		t.Fatalf("LogConfig = %+v", hc.LogConfig)
	}
}
