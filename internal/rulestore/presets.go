package rulestore

import (
	"fmt"
	"sort"
)

// Presets are starter rule sets for common log formats, so a fresh store
// does not need the oracle for every first line.
var presets = map[string][]string{
	// sshd, sudo and PAM lines from /var/log/auth.log
	"authlog": {
		`%{SYSLOGTIMESTAMP:timestamp} %{SYSLOGHOST:host} %{WORD:proc}\[%{INT:pid:int}\]: %{WORD:login_status} %{WORD:auth_method} for (?:invalid user )?%{USERNAME:login} from %{IP:src_ip} port %{INT:src_port:int} ssh2(?:: %{GREEDYDATA:signature})?`,
		`%{SYSLOGTIMESTAMP:timestamp} %{SYSLOGHOST:host} %{WORD:proc}\[%{INT:pid:int}\]: Invalid user %{USERNAME:login} from %{IP:src_ip}(?: port %{INT:src_port:int})?`,
		`%{SYSLOGTIMESTAMP:timestamp} %{SYSLOGHOST:host} sudo: +%{USERNAME:login} : (?:%{DATA:args} ; )?TTY=%{NOTSPACE:tty} ; PWD=%{NOTSPACE:pwd} ; USER=%{USERNAME:target_user} ; COMMAND=%{GREEDYDATA:command}`,
		`%{SYSLOGTIMESTAMP:timestamp} %{SYSLOGHOST:host} %{PROG:proc}(?:\[%{INT:pid:int}\])?: pam_unix\(%{DATA:auth_method}\): session %{WORD:login_status} for user %{USERNAME:target_user}(?: by %{GREEDYDATA:args})?`,
	},
	// nginx and apache combined/common access logs
	"nginx": {
		`%{IPORHOST:src_ip} - %{HTTPDUSER:login} \[%{HTTPDATE:timestamp}\] "%{WORD} %{URIPATHPARAM:uri} HTTP/%{NUMBER}" %{INT:status_code:int} %{INT:bytes_sent:int} "%{DATA:url}" "%{DATA:args}"`,
		`%{IPORHOST:src_ip} - (?:-|%{HTTPDUSER:login}) \[%{HTTPDATE:timestamp}\] "%{WORD} %{URIPATHPARAM:uri} HTTP/%{NUMBER}" %{INT:status_code:int} (?:-|%{INT:bytes_sent:int})`,
	},
	// generic RFC 3164 syslog
	"syslog": {
		`%{SYSLOGTIMESTAMP:timestamp} %{SYSLOGHOST:host} %{PROG:proc}(?:\[%{INT:pid:int}\])?: %{GREEDYDATA:args}`,
	},
}

// PresetNames returns the available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the named rule set.
func Preset(name string) ([]string, error) {
	defs, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	out := make([]string, len(defs))
	copy(out, defs)
	return out, nil
}
