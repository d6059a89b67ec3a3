package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"runtime/metrics"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultExtractTimeout = 60 * time.Second
	DefaultExtractMemory  = 256 << 20
	// DefaultAddressSpace is a virtual memory backstop well above what the
	// Go runtime reserves at startup.
	DefaultAddressSpace = 4 << 30

	envMemory       = "PROSPEKT_EXTRACT_MEMORY"
	envAddressSpace = "PROSPEKT_EXTRACT_ADDRESS_SPACE"

	heapPollInterval = 10 * time.Millisecond
	exitHeapLimit    = 3
	stderrTail       = 512
)

// Limits bound the resources of one extraction child.
type Limits struct {
	// Memory is the heap ceiling. The child sets it as its GC memory limit
	// and exits once live heap objects pass it.
	Memory int64
	// AddressSpace caps virtual memory through RLIMIT_AS where the platform
	// supports it. Zero leaves it unset.
	AddressSpace uint64
}

func (l Limits) environ() []string {
	return []string{
		envMemory + "=" + strconv.FormatInt(l.Memory, 10),
		envAddressSpace + "=" + strconv.FormatUint(l.AddressSpace, 10),
	}
}

func limitsFromEnv() Limits {
	l := Limits{Memory: DefaultExtractMemory}
	if n, err := strconv.ParseInt(os.Getenv(envMemory), 10, 64); err == nil && n > 0 {
		l.Memory = n
	}
	if n, err := strconv.ParseUint(os.Getenv(envAddressSpace), 10, 64); err == nil {
		l.AddressSpace = n
	}
	return l
}

// ProcessExtractor runs PDF parsing in a child process so a hostile file can
// only take down the child. Any abnormal child exit, including a timeout or
// an out-of-memory abort, is reported as ErrUnreadable.
type ProcessExtractor struct {
	// Path and Args start the child, which must call ServeExtraction.
	Path string
	Args []string
	// Env is appended to the parent's environment.
	Env     []string
	Timeout time.Duration
	Limits  Limits
}

// NewProcessExtractor re-executes path with args under the default limits.
func NewProcessExtractor(path string, args ...string) ProcessExtractor {
	return ProcessExtractor{
		Path:    path,
		Args:    args,
		Timeout: DefaultExtractTimeout,
		Limits:  Limits{Memory: DefaultExtractMemory, AddressSpace: DefaultAddressSpace},
	}
}

func (p ProcessExtractor) Extract(ctx context.Context, r io.Reader) (string, error) {
	data, err := readLimited(r)
	if err != nil {
		return "", err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, p.Path, p.Args...)
	cmd.Env = append(append(os.Environ(), p.Env...), p.Limits.environ()...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err = cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: extraction exceeded %s", ErrUnreadable, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", fmt.Errorf("%w: extractor %v: %s", ErrUnreadable, exitErr, lastLine(stderr.Bytes()))
	}
	if err != nil {
		return "", fmt.Errorf("starting extractor: %w", err)
	}
	return stdout.String(), nil
}

func lastLine(b []byte) string {
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// ServeExtraction is the child side of ProcessExtractor: it applies the
// limits passed in the environment, reads a PDF from in and writes its text
// to out.
func ServeExtraction(in io.Reader, out io.Writer) error {
	l := limitsFromEnv()
	debug.SetMemoryLimit(l.Memory)
	if err := limitAddressSpace(l.AddressSpace); err != nil {
		fmt.Fprintf(os.Stderr, "address space limit not applied: %v\n", err)
	}
	go watchHeap(uint64(l.Memory))

	text, err := PDFExtractor{}.Extract(context.Background(), in)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, text)
	return err
}

func watchHeap(limit uint64) {
	sample := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
	ticker := time.NewTicker(heapPollInterval)
	defer ticker.Stop()
	for range ticker.C {
		metrics.Read(sample)
		if sample[0].Value.Kind() != metrics.KindUint64 {
			return
		}
		if used := sample[0].Value.Uint64(); used > limit {
			fmt.Fprintf(os.Stderr, "heap %d bytes exceeds limit of %d bytes\n", used, limit)
			os.Exit(exitHeapLimit)
		}
	}
}
