package token

import "sync"

var (
	registryMu sync.RWMutex

	// nextTokenID tracks the next available dynamic token ID.
	// Dynamic tokens start after maxBuiltin (999).
	nextTokenID = maxBuiltin

	dynamicTokens = make(map[TokenType]string)
	dynamicNames  = make(map[string]TokenType)
)

// Register allocates a token type for a caller-defined grammar.
// Registering the same name twice returns the same type.
func Register(name string) TokenType {
	registryMu.Lock()
	defer registryMu.Unlock()

	if t, ok := dynamicNames[name]; ok {
		return t
	}
	nextTokenID++
	t := nextTokenID
	dynamicTokens[t] = name
	dynamicNames[name] = t
	return t
}

func getDynamicName(t TokenType) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	name, ok := dynamicTokens[t]
	return name, ok
}

// Lookup returns the dynamic token type registered under name.
func Lookup(name string) (TokenType, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := dynamicNames[name]
	return t, ok
}

// IsDynamic returns true if the token type was allocated by Register.
func IsDynamic(t TokenType) bool {
	return t > maxBuiltin
}
