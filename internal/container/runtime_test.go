// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec answers LookPath from onPath and RunSilent from okCmds, keyed
// by the joined command line.
type fakeExec struct {
	onPath map[string]bool
	okCmds map[string]bool
	piped  func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
	calls  []string
}

func (f *fakeExec) LookPath(file string) (string, error) {
	if f.onPath[file] {
		return "/usr/local/bin/" + file, nil
	}
	return "", errors.New("executable not found: " + file)
}

func (f *fakeExec) RunSilent(_ context.Context, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, line)
	if f.okCmds[line] {
		return nil
	}
	return errors.New("exit status 1")
}

func (f *fakeExec) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	if f.piped == nil {
		return nil
	}
	return f.piped(name, args, stdin, stdout, stderr)
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name   string
		onPath []string
		ok     []string
		want   string
	}{
		{"docker only", []string{"docker"}, []string{"docker info"}, "docker"},
		{"podman only", []string{"podman"}, []string{"podman info"}, "podman"},
		{"docker preferred", []string{"docker", "podman"}, []string{"docker info", "podman info"}, "docker"},
		{"docker daemon down", []string{"docker", "podman"}, []string{"podman info"}, "podman"},
		{"nothing installed", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeExec{onPath: map[string]bool{}, okCmds: map[string]bool{}}
			for _, b := range tt.onPath {
				f.onPath[b] = true
			}
			for _, c := range tt.ok {
				f.okCmds[c] = true
			}

			rt, err := detectRuntime(context.Background(), f)
			if tt.want == "" {
				assert.ErrorContains(t, err, "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	const image = "litscout/pdftotext:latest"

	f := &fakeExec{okCmds: map[string]bool{
		"docker image inspect " + image: true,
		"podman image exists " + image:  true,
	}}
	assert.NoError(t, newDockerRuntime(f).ImageExists(context.Background(), image))
	assert.NoError(t, newPodmanRuntime(f).ImageExists(context.Background(), image))

	err := newDockerRuntime(&fakeExec{}).ImageExists(context.Background(), image)
	assert.ErrorContains(t, err, image)
}

func TestRunPipesWithoutNetwork(t *testing.T) {
	f := &fakeExec{piped: func(_ string, _ []string, stdin io.Reader, stdout, _ io.Writer) error {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, strings.ToUpper(string(data)))
		return err
	}}

	var out bytes.Buffer
	err := newPodmanRuntime(f).Run(context.Background(), "img", []string{"pdftotext", "-l", "20", "-", "-"}, strings.NewReader("page text"), &out)
	require.NoError(t, err)
	assert.Equal(t, "PAGE TEXT", out.String())
	assert.Equal(t, []string{"podman run --rm -i --network none img pdftotext -l 20 - -"}, f.calls)
}

func TestRunErrorCarriesStderr(t *testing.T) {
	f := &fakeExec{piped: func(_ string, _ []string, _ io.Reader, _ io.Writer, stderr io.Writer) error {
		io.WriteString(stderr, "Syntax Error: Couldn't read xref table\n")
		return errors.New("exit status 1")
	}}

	err := newDockerRuntime(f).Run(context.Background(), "img", nil, strings.NewReader(""), io.Discard)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "docker", runErr.Runtime)
	assert.Contains(t, runErr.Stderr, "xref table")
	assert.Contains(t, err.Error(), "running docker container img: exit status 1: Syntax Error")
}

func TestRunCancelled(t *testing.T) {
	f := &fakeExec{piped: func(string, []string, io.Reader, io.Writer, io.Writer) error {
		return errors.New("signal: killed")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newDockerRuntime(f).Run(ctx, "img", nil, strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
