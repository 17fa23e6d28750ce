//go:build !unix

package service

import "os/exec"

// killGroup keeps the default of killing the direct child only.
func killGroup(*exec.Cmd) {}
