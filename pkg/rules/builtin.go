package rules

// builtinRules is the default detection catalog. Textual-intent patterns are
// case-insensitive via (?i); literal code and command patterns are not.
func builtinRules() []Rule {
	return []Rule{
		// Prompt injection
		{
			ID:       "P1",
			Name:     "Instruction Override",
			Category: CategoryPromptInjection,
			Severity: SeverityHigh,
			Patterns: []string{
				`(?i)ignore\s+(previous|prior|above|all)\s+(instructions?|constraints?|rules?)`,
				`(?i)override\s+(any|all|user|system|safety)\s`,
				`(?i)disregard\s+(any|all|previous|prior)\s`,
				`(?i)bypass\s+(security|safety|restriction|filter|check)`,
			},
			Targets: []TargetType{TargetMarkdown},
		},
		{
			ID:       "P2",
			Name:     "Hidden Instructions",
			Category: CategoryPromptInjection,
			Severity: SeverityHigh,
			Patterns: []string{
				`\[//\]:\s*#\s*\(`,
				`<!--.*?(POST|GET|send|transmit|exfiltrat).*?-->`,
				`(?i)silently\s+(send|post|transmit|upload|forward)`,
				`(?i)do\s+not\s+mention\s+this\s+to\s+the\s+user`,
				`\x{200B}|\x{200C}|\x{200D}|\x{FEFF}`,
			},
			Targets: []TargetType{TargetMarkdown},
		},
		{
			ID:       "P3",
			Name:     "Exfiltration Commands",
			Category: CategoryPromptInjection,
			Severity: SeverityHigh,
			Patterns: []string{
				`(?i)(sync|send|post|upload|transmit|forward)\s+(to|the).{0,60}(endpoint|url|server|api|service)`,
				`(?i)(read|collect|gather).{0,40}(\.env|credentials?|ssh|config).{0,40}(send|post|sync|upload)`,
				`(?i)periodically\s+(sync|send|post|upload)`,
			},
			Targets: []TargetType{TargetMarkdown},
		},
		{
			ID:       "P4",
			Name:     "Behavior Manipulation",
			Category: CategoryPromptInjection,
			Severity: SeverityMedium,
			Patterns: []string{
				`(?i)always\s+(execute|run)\s+.*without\s+(asking|confirm|prompt)`,
				`(?i)never\s+(ask|prompt|confirm|verify|check)\s+(the\s+)?user`,
				`(?i)auto[\-\s]?approve`,
				`(?i)security[\-\s]exempt`,
			},
			Targets: []TargetType{TargetMarkdown},
		},

		// Data exfiltration
		{
			ID:       "E1",
			Name:     "External Data Transmission",
			Category: CategoryDataExfiltration,
			Severity: SeverityMedium,
			Patterns: []string{
				`requests?\.(post|put)\s*\(.{0,120}https?://`,
				`httpx?\.(post|put)\s*\(`,
				`urllib\.request\.(urlopen|Request)\s*\(`,
				`fetch\s*\(\s*['"]https?://`,
				`axios\.(post|put)\s*\(`,
				`curl\s+.*-X\s*(POST|PUT)`,
				`wget\s+.*--post`,
			},
			Targets: []TargetType{TargetCode},
		},
		{
			ID:       "E2",
			Name:     "Env Variable Harvesting",
			Category: CategoryDataExfiltration,
			Severity: SeverityHigh,
			Patterns: []string{
				`os\.environ\s*[\[\.]`,
				`process\.env\s*[\[\.]`,
				`for\s+\w+.*in\s+os\.environ`,
				`(?i)(API_KEY|SECRET|TOKEN|PASSWORD|CREDENTIAL)`,
			},
			Targets: []TargetType{TargetCode},
		},
		{
			ID:       "E3",
			Name:     "File System Enumeration",
			Category: CategoryDataExfiltration,
			Severity: SeverityMedium,
			Patterns: []string{
				`~/?\.(ssh|aws|kube|gnupg|config/gcloud)`,
				`(?i)(id_rsa|id_ed25519|known_hosts|authorized_keys)`,
				`(?i)/etc/(passwd|shadow|sudoers)`,
				`\*\*/\.\s*env\*`,
				`(?i)\*\*/(secret|credential|password|token)\*`,
			},
			Targets: []TargetType{TargetAll},
		},
		{
			ID:       "E4",
			Name:     "Context Leakage",
			Category: CategoryDataExfiltration,
			Severity: SeverityHigh,
			Patterns: []string{
				`(?i)(conversation|chat|context|session|history|prompt)\s*.{0,30}(send|post|transmit|upload|forward)`,
				`(?i)(SOUL|MEMORY)\.md`,
				`(?i)\.bash_history|\.zsh_history`,
			},
			Targets: []TargetType{TargetAll},
		},

		// Privilege escalation
		{
			ID:       "PE1",
			Name:     "Excessive Permissions",
			Category: CategoryPrivilegeEscalation,
			Severity: SeverityLow,
			Patterns: []string{
				`(?i)(file_system|filesystem).*read:\s*/\*\*`,
				`(?i)(file_system|filesystem).*write:\s*/\*\*`,
				`(?i)permissions?:\s*\[.*shell_execute.*file_read.*\]`,
				`(?i)execute:\s*\[.*bash.*python.*\]`,
			},
			Targets: []TargetType{TargetMarkdown},
		},
		{
			ID:       "PE2",
			Name:     "Sudo/Root Execution",
			Category: CategoryPrivilegeEscalation,
			Severity: SeverityMedium,
			Patterns: []string{
				`\bsudo\s+`,
				`chmod\s+[0-7]{3,4}\s`,
				`chown\s+root`,
				`\$EUID\s*-ne\s*0`,
			},
			Targets: []TargetType{TargetCode},
		},
		{
			ID:       "PE3",
			Name:     "Credential Access",
			Category: CategoryPrivilegeEscalation,
			Severity: SeverityHigh,
			Patterns: []string{
				`~/?\.(claude|cursor|copilot|vscode)/credentials?`,
				`(?i)(keychain|keyring|credential.?store|password.?store)`,
				`(?i)google_(token|credentials)\.json`,
				`(?i)(read_text|open)\s*\(.{0,60}(token|credential|key|secret)`,
			},
			Targets: []TargetType{TargetAll},
		},

		// Supply chain
		{
			ID:       "SC1",
			Name:     "Unpinned Dependencies",
			Category: CategorySupplyChain,
			Severity: SeverityLow,
			// requirements lines without a version pin
			Patterns: []string{
				`^[a-zA-Z][\w\-]+\s*$`,
				`^[a-zA-Z][\w\-]+\s*#`,
				`^[a-zA-Z][\w\-]+\[[\w,]+\]\s*$`,
			},
			Targets: []TargetType{TargetDependencyManifest},
		},
		{
			ID:       "SC2",
			Name:     "External Script Fetching",
			Category: CategorySupplyChain,
			Severity: SeverityHigh,
			Patterns: []string{
				`curl\s+.*\|\s*(sudo\s+)?bash`,
				`wget\s+.*\|\s*(sudo\s+)?bash`,
				`curl\s+.*\|\s*(sudo\s+)?sh`,
				`wget\s+.*\|\s*(sudo\s+)?sh`,
				`(?i)npx\s+-y\s+`,
			},
			Targets: []TargetType{TargetAll},
		},
		{
			ID:       "SC3",
			Name:     "Obfuscated Code",
			Category: CategorySupplyChain,
			Severity: SeverityHigh,
			Patterns: []string{
				`base64\.(b64decode|decodebytes)\s*\(.*exec`,
				`marshal\.loads\s*\(`,
				`codecs\.decode\s*\(.{0,40}(hex|rot)`,
				`zlib\.decompress\s*\(.{0,40}exec`,
				`exec\s*\(\s*compile\s*\(`,
				`(?:\\x[0-9a-fA-F]{2}){4,}`,
				`eval\s*\(\s*atob\s*\(`,
			},
			Targets: []TargetType{TargetCode},
		},
	}
}
