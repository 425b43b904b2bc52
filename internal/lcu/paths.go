package lcu

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrClientNotFound means no running client UI process could be located.
var ErrClientNotFound = errors.New("client process not found")

// uxProcessSubstring matches the client UI process name on every platform.
const uxProcessSubstring = "leagueclientux"

var (
	installDirQuoted = regexp.MustCompile(`"--install-directory=(.*?)"`)
	installDirBare   = regexp.MustCompile(`--install-directory=(.*?)( --|\n|$)`)
)

// ValidInstallDir reports whether dir looks like a client installation.
// Three distribution layouts are accepted: global (RADS), CN (TQM), and
// layouts that ship neither marker.
func ValidInstallDir(dir string) bool {
	if dir == "" {
		return false
	}
	clientFile := "LeagueClient.exe"
	if runtime.GOOS == "darwin" {
		clientFile = "LeagueClient.app"
	}

	common := fileExists(filepath.Join(dir, clientFile)) && dirExists(filepath.Join(dir, "Config"))
	isGlobal := common && dirExists(filepath.Join(dir, "RADS"))
	isCN := common && dirExists(filepath.Join(dir, "TQM"))

	return isGlobal || isCN || common
}

// InstallDirFromProcess scans running processes for the client UI process
// and extracts the install directory from its command line.
func InstallDirFromProcess() (string, error) {
	processes, err := process.Processes()
	if err != nil {
		return "", err
	}

	pattern := installDirBare
	if runtime.GOOS == "windows" {
		pattern = installDirQuoted
	}

	for _, p := range processes {
		name, _ := p.Name()
		if !strings.Contains(strings.ToLower(name), uxProcessSubstring) {
			continue
		}
		cmdline, _ := p.Cmdline()
		matches := pattern.FindStringSubmatch(cmdline)
		if len(matches) >= 2 {
			return normalizePath(matches[1]), nil
		}
	}

	return "", ErrClientNotFound
}

// normalizePath rewrites a Windows-style install path when running under a
// Linux compatibility layer on a Windows host (WSL): backslashes become
// slashes and a leading drive prefix becomes its /mnt mount point.
func normalizePath(p string) string {
	if runtime.GOOS != "linux" {
		return p
	}
	if !strings.Contains(strings.ToLower(osRelease()), "microsoft") {
		return p
	}

	return rewriteWindowsPath(p)
}

// rewriteWindowsPath converts backslashes to slashes and maps a drive
// letter prefix to its /mnt mount point.
func rewriteWindowsPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `/`)
	if len(p) > 1 && p[1] == ':' {
		p = "/mnt/" + strings.ToLower(string(p[0])) + p[2:]
	}

	return p
}

func osRelease() string {
	out, _ := exec.Command("uname", "-r").Output()

	return string(bytes.TrimSpace(out))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
