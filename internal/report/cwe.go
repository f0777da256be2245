package report

// CWEDescriptions labels the categories that show up most in bandit output.
// Ids outside this table stay unlabeled.
var CWEDescriptions = map[string]string{
	"20":  "Input Validation",
	"22":  "Path Traversal",
	"78":  "OS Command Injection",
	"79":  "XSS",
	"89":  "SQL Injection",
	"259": "Hard-coded Password",
	"327": "Weak Cryptography",
	"352": "CSRF",
	"434": "Unrestricted Upload",
	"502": "Deserialization",
}

// Describe returns the short label for a CWE id, accepting "CWE-89" or "89".
func Describe(id string) string {
	if len(id) > 4 && (id[:4] == "CWE-" || id[:4] == "cwe-") {
		id = id[4:]
	}
	return CWEDescriptions[id]
}

// Label is "89: SQL Injection" for known ids and the bare id otherwise.
func Label(id string) string {
	if d := Describe(id); d != "" {
		return id + ": " + d
	}
	return id
}
