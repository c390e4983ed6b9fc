package registry

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client used by SSMRegistry.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, opts ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DeleteParameter(ctx context.Context, in *ssm.DeleteParameterInput, opts ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
	GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, opts ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMRegistry stores one String parameter per configuration at
// <prefix>/<configName>. The identifier is the parameter ARN.
type SSMRegistry struct {
	client SSMAPI
	prefix string
}

var _ Registry = (*SSMRegistry)(nil)

// NewSSMRegistry wraps an SSM client.
func NewSSMRegistry(client SSMAPI, prefix string) *SSMRegistry {
	return &SSMRegistry{client: client, prefix: "/" + strings.Trim(prefix, "/")}
}

// NewSSMRegistryFromConfig loads AWS credentials from the default chain.
func NewSSMRegistryFromConfig(ctx context.Context, prefix, region string) (*SSMRegistry, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSSMRegistry(ssm.NewFromConfig(cfg), prefix), nil
}

// Close is a no-op.
func (r *SSMRegistry) Close() error { return nil }

func (r *SSMRegistry) paramName(name string) string {
	return path.Join(r.prefix, name)
}

// FetchByName returns the document stored under name.
func (r *SSMRegistry) FetchByName(ctx context.Context, name string) ([]byte, error) {
	p, err := r.get(ctx, r.paramName(name))
	if err != nil {
		return nil, err
	}
	return []byte(aws.ToString(p.Value)), nil
}

// ResolveIdentifier returns the parameter ARN for name.
func (r *SSMRegistry) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	p, err := r.get(ctx, r.paramName(name))
	if err != nil {
		return "", err
	}
	return aws.ToString(p.ARN), nil
}

// FetchByID returns the document for a parameter ARN.
func (r *SSMRegistry) FetchByID(ctx context.Context, id string) ([]byte, error) {
	name, err := r.nameFromARN(id)
	if err != nil {
		return nil, err
	}
	p, err := r.get(ctx, name)
	if err != nil {
		return nil, err
	}
	return []byte(aws.ToString(p.Value)), nil
}

// Save writes the parameter for the document's configName. Renaming an
// existing configuration writes the new parameter and deletes the old one.
func (r *SSMRegistry) Save(ctx context.Context, data []byte, existingID string) (string, error) {
	name, err := DocumentName(data)
	if err != nil {
		return "", err
	}
	target := r.paramName(name)

	var previous string
	if existingID != "" {
		if previous, err = r.nameFromARN(existingID); err != nil {
			return "", err
		}
		if _, err := r.get(ctx, previous); err != nil {
			return "", err
		}
	}
	if previous != target {
		if _, err := r.get(ctx, target); err == nil {
			return "", fmt.Errorf("%w: %s", ErrConflict, name)
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	_, err = r.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(target),
		Value:     aws.String(string(data)),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return "", mapSSMError(err, target)
	}

	if previous != "" && previous != target {
		if _, err := r.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(previous)}); err != nil {
			return "", mapSSMError(err, previous)
		}
	}

	return r.ResolveIdentifier(ctx, name)
}

// Delete removes the parameter for an ARN.
func (r *SSMRegistry) Delete(ctx context.Context, id string) error {
	name, err := r.nameFromARN(id)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(name)})
	return mapSSMError(err, name)
}

// List returns every parameter directly under the prefix.
func (r *SSMRegistry) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	pager := ssm.NewGetParametersByPathPaginator(r.client, &ssm.GetParametersByPathInput{
		Path:      aws.String(r.prefix),
		Recursive: aws.Bool(false),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapSSMError(err, r.prefix)
		}
		for _, p := range page.Parameters {
			entries = append(entries, Entry{
				ID:        aws.ToString(p.ARN),
				Name:      path.Base(aws.ToString(p.Name)),
				UpdatedAt: aws.ToTime(p.LastModifiedDate),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *SSMRegistry) get(ctx context.Context, name string) (*types.Parameter, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if err != nil {
		return nil, mapSSMError(err, name)
	}
	if out.Parameter == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return out.Parameter, nil
}

// nameFromARN extracts the parameter name from
// arn:aws:ssm:<region>:<account>:parameter/<name> and checks it is under the prefix.
func (r *SSMRegistry) nameFromARN(id string) (string, error) {
	_, rest, ok := strings.Cut(id, ":parameter")
	if !ok || !strings.HasPrefix(id, "arn:") {
		return "", fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	if !strings.HasPrefix(rest, r.prefix+"/") {
		return "", fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return rest, nil
}

func mapSSMError(err error, name string) error {
	if err == nil {
		return nil
	}
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: ssm %s: %v", ErrUnavailable, name, err)
}
