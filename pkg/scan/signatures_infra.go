package scan

// infrastructureSignatures covers private addressing and internal hosts.
func infrastructureSignatures() []Signature {
	return []Signature{
		withDescription(NewSignature("internal_ip", CategoryInfrastructure, SeverityHigh, AllOccurrences,
			`\b(?:192\.168\.|10\.|172\.(?:1[6-9]|2[0-9]|3[01])\.)[0-9]{1,3}\.[0-9]{1,3}\b`),
			"RFC 1918 private IPv4 address"),
		withDescription(NewSignature("localhost", CategoryInfrastructure, SeverityMedium, AllOccurrences,
			`localhost(?::\d+)?|127\.0\.0\.1(?::\d+)?`),
			"Loopback reference"),
		withDescription(NewSignature("internal_domain", CategoryInfrastructure, SeverityHigh, AllOccurrences,
			`(?i)https?://(?:internal|staging|dev|local|vpn|admin|intranet)\.[a-z0-9-]+\.[a-z]{2,}`),
			"Internal-looking host URL"),
	}
}

// sourceCodeSignatures covers secrets assigned in code and env files.
func sourceCodeSignatures() []Signature {
	return []Signature{
		withDescription(NewSignature("sql_password", CategorySourceCode, SeverityCritical, AllOccurrences,
			`(?i)password\s*=\s*['"][^'"]{8,}['"]`),
			"Quoted password literal"),
		withDescription(NewSignature("env_variables", CategorySourceCode, SeverityHigh, AllOccurrences,
			`(?i)(?:DATABASE_URL|REDIS_URL|MONGO_URL|API_URL|SECRET_KEY|PRIVATE_KEY)\s*=\s*[^\n]*`),
			"Sensitive environment variable assignment"),
		withDescription(NewSignature("hardcoded_secret", CategorySourceCode, SeverityHigh, AllOccurrences,
			"(?i)(?:secret|password|api_key|token|key)\\s*[:=]\\s*['\"`][^'\"`]{8,}['\"`]"),
			"Quoted secret/password/token/key literal"),
	}
}
