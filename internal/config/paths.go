package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// expandPath expands environment variables and a leading ~ in p.
// On Windows ~\ and %VAR% forms are accepted as well.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = expandEnv(p)
	rest, ok := cutHome(p)
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// cutHome strips a leading "~" or "~/" and reports whether one was present.
func cutHome(p string) (string, bool) {
	if p == "~" {
		return "", true
	}
	if strings.HasPrefix(p, "~/") {
		return p[2:], true
	}
	if runtime.GOOS == "windows" && strings.HasPrefix(p, `~\`) {
		return p[2:], true
	}
	return p, false
}

func expandEnv(p string) string {
	p = os.ExpandEnv(p)
	if runtime.GOOS != "windows" || !strings.Contains(p, "%") {
		return p
	}
	return expandPercentVars(p)
}

// expandPercentVars replaces %NAME% with the variable's value. Unknown
// variables and a lone % are left untouched.
func expandPercentVars(p string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(p, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(p[start+1:], '%')
		if end < 0 {
			break
		}
		key := p[start+1 : start+1+end]
		b.WriteString(p[:start])
		if val, ok := os.LookupEnv(key); ok && key != "" {
			b.WriteString(val)
			p = p[start+end+2:]
			continue
		}
		// keep the first % and rescan from the second so %A%B% still finds %B%
		b.WriteString(p[start : start+1+end])
		p = p[start+1+end:]
	}
	b.WriteString(p)
	return b.String()
}
