package types

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/spawn-mcp/tripsynth/pkg/errors"
)

// envelope reads only the discriminant
type envelope struct {
	Role Role `json:"role"`
}

// DecodeRoleOutput decodes one role output. The payload must carry a "role"
// discriminant; comments and trailing commas are accepted.
func DecodeRoleOutput(data []byte) (RoleOutput, error) {
	data = jsonc.ToJSON(data)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(fmt.Errorf("decode role envelope: %w", err), errors.ErrInvalidInput)
	}

	var out RoleOutput
	switch env.Role {
	case RoleArchitect:
		out = &ArchitectOutput{}
	case RoleGatherer:
		out = &GathererOutput{}
	case RoleSpecialist:
		out = &SpecialistOutput{}
	case RolePutter:
		out = &PutterOutput{}
	case "":
		return nil, errors.New(errors.ErrUnknownRole, "role output is missing the role discriminant")
	default:
		return nil, errors.Newf(errors.ErrUnknownRole, "unknown role %q", env.Role)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(fmt.Errorf("decode %s output: %w", env.Role, err), errors.ErrInvalidInput)
	}
	return out, nil
}

// EncodeRoleOutput encodes a role output with its discriminant
func EncodeRoleOutput(out RoleOutput) ([]byte, error) {
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	role, _ := json.Marshal(out.Role())
	fields["role"] = role
	return json.Marshal(fields)
}

// DecodeRoleOutputAs decodes an output expected to hold role. A missing
// discriminant is filled in; a different one is rejected.
func DecodeRoleOutputAs(data []byte, role Role) (RoleOutput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &fields); err != nil {
		return nil, errors.Wrap(fmt.Errorf("decode %s output: %w", role, err), errors.ErrInvalidInput)
	}
	if fields == nil {
		return nil, errors.Newf(errors.ErrInvalidInput, "%s output must be a JSON object", role)
	}
	if _, ok := fields["role"]; !ok {
		fields["role"], _ = json.Marshal(role)
	}
	filled, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput)
	}
	out, err := DecodeRoleOutput(filled)
	if err != nil {
		return nil, err
	}
	if out.Role() != role {
		return nil, errors.Newf(errors.ErrInvalidInput, "expected %s output, got %s", role, out.Role())
	}
	return out, nil
}
