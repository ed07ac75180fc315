package par

// CheckRequestURI rejects pushes that carry request_uri, whatever its value.
// PAR produces request_uri handles; it never consumes them.
func CheckRequestURI(params map[string][]string) error {
	if _, ok := params[ParamRequestURI]; ok {
		return clientError(ErrCodeInvalidRequest, RequestURINotAllowed)
	}
	return nil
}
