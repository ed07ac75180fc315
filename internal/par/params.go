package par

import "fmt"

// credentialParams authenticate the pushing client; they are not part of
// the authorization request and are never persisted.
var credentialParams = map[string]struct{}{
	"client_secret":         {},
	"client_assertion":      {},
	"client_assertion_type": {},
}

// Collect flattens a multi-valued parameter map. The first value of each
// key wins; a key without values is a transport contract violation.
func Collect(multi map[string][]string) (map[string]string, error) {
	out := make(map[string]string, len(multi))
	for k, vs := range multi {
		if len(vs) == 0 {
			return nil, serverError("empty parameter value list", fmt.Errorf("%w: %q", ErrMalformedParameter, k))
		}
		if _, secret := credentialParams[k]; secret {
			continue
		}
		out[k] = vs[0]
	}
	return out, nil
}
