package config

// SecretStringValue replaces secrets in marshalled output.
const SecretStringValue = "<secret>"

// SecretString is a string that is never written out by JSON or YAML
// marshalling.
type SecretString string

// MarshalJSON hides the value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte("\"" + SecretStringValue + "\""), nil
}

// MarshalYAML hides the value.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}

func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}
