package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/ripcordhq/ripcord/pkg/types"
)

// endpointOutputKey is the CloudFormation stack output holding the service's
// public URL. The infra-apply collaborator owns the endpoint; the facade only
// reads it.
const endpointOutputKey = "ServiceEndpoint"

// AWSOptions configures the AWS-backed facade for one environment.
type AWSOptions struct {
	Region     string
	Stack      string // CloudFormation stack with the declared infrastructure
	Repository string // ECR repository backing the service image
	Family     string // task definition family; defaults to the service name
}

// AWSFacade implements Facade against ECS, ECR, CloudFormation and Secrets
// Manager.
type AWSFacade struct {
	ecs     *ecs.Client
	ecr     *ecr.Client
	cfn     *cloudformation.Client
	secrets *secretsmanager.Client
	opts    AWSOptions
}

// NewAWSFacade creates a facade using the default credential chain.
func NewAWSFacade(ctx context.Context, opts AWSOptions) (*AWSFacade, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSFacade{
		ecs:     ecs.NewFromConfig(cfg),
		ecr:     ecr.NewFromConfig(cfg),
		cfn:     cloudformation.NewFromConfig(cfg),
		secrets: secretsmanager.NewFromConfig(cfg),
		opts:    opts,
	}, nil
}

// DescribeService returns a fresh rollout snapshot for the target.
func (f *AWSFacade) DescribeService(ctx context.Context, target types.DeploymentTarget) (types.RolloutStatus, error) {
	out, err := f.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(target.Cluster),
		Services: []string{target.Service},
	})
	if err != nil {
		return types.RolloutStatus{}, classify("describe-service", target.Key(), err)
	}
	if len(out.Services) == 0 {
		return types.RolloutStatus{}, NewError("describe-service", target.Key(), KindNotFound,
			errors.New("service not found"))
	}

	svc := out.Services[0]
	status := types.RolloutStatus{
		State:        rolloutState(svc),
		RunningCount: int(svc.RunningCount),
		DesiredCount: int(svc.DesiredCount),
	}
	if svc.TaskDefinition != nil {
		status.CurrentRevision = revisionFromARN(*svc.TaskDefinition)
	}
	return status, nil
}

// ListRevisions returns the target's revision history, newest first. The
// registry's descending sort matches creation order because revisions are
// never re-registered.
func (f *AWSFacade) ListRevisions(ctx context.Context, target types.DeploymentTarget) ([]types.RevisionRef, error) {
	family := f.opts.Family
	if family == "" {
		family = target.Service
	}

	out, err := f.ecs.ListTaskDefinitions(ctx, &ecs.ListTaskDefinitionsInput{
		FamilyPrefix: aws.String(family),
		Status:       ecstypes.TaskDefinitionStatusActive,
		Sort:         ecstypes.SortOrderDesc,
	})
	if err != nil {
		return nil, classify("list-revisions", target.Key(), err)
	}
	if len(out.TaskDefinitionArns) == 0 {
		return nil, NewError("list-revisions", target.Key(), KindNotFound,
			fmt.Errorf("no revisions registered for family %s", family))
	}

	revs := make([]types.RevisionRef, 0, len(out.TaskDefinitionArns))
	for _, arn := range out.TaskDefinitionArns {
		revs = append(revs, revisionFromARN(arn))
	}
	return revs, nil
}

// UpdateService moves the service to the given revision. A negative
// desiredCount leaves capacity untouched.
func (f *AWSFacade) UpdateService(ctx context.Context, target types.DeploymentTarget, rev types.RevisionRef, desiredCount int) error {
	input := &ecs.UpdateServiceInput{
		Cluster:        aws.String(target.Cluster),
		Service:        aws.String(target.Service),
		TaskDefinition: aws.String(rev.Handle),
	}
	if desiredCount >= 0 {
		input.DesiredCount = aws.Int32(int32(desiredCount))
	}

	if _, err := f.ecs.UpdateService(ctx, input); err != nil {
		return classify("update-service", target.Key(), err)
	}
	return nil
}

// Scale sets the service's desired instance count.
func (f *AWSFacade) Scale(ctx context.Context, target types.DeploymentTarget, desiredCount int) error {
	_, err := f.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(target.Cluster),
		Service:      aws.String(target.Service),
		DesiredCount: aws.Int32(int32(desiredCount)),
	})
	if err != nil {
		return classify("scale", target.Key(), err)
	}
	return nil
}

// PublicEndpoint reads the service URL from the stack outputs.
func (f *AWSFacade) PublicEndpoint(ctx context.Context, target types.DeploymentTarget) (string, error) {
	out, err := f.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(f.opts.Stack),
	})
	if err != nil {
		return "", classify("public-endpoint", target.Key(), err)
	}
	if len(out.Stacks) == 0 {
		return "", NewError("public-endpoint", target.Key(), KindNotFound,
			fmt.Errorf("stack %s not found", f.opts.Stack))
	}

	for _, output := range out.Stacks[0].Outputs {
		if output.OutputKey != nil && *output.OutputKey == endpointOutputKey && output.OutputValue != nil {
			return *output.OutputValue, nil
		}
	}
	return "", NewError("public-endpoint", target.Key(), KindNotFound,
		fmt.Errorf("stack %s has no %s output", f.opts.Stack, endpointOutputKey))
}

// StackStatus returns the state of the target's declared infrastructure.
func (f *AWSFacade) StackStatus(ctx context.Context, target types.DeploymentTarget) (string, error) {
	out, err := f.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(f.opts.Stack),
	})
	if err != nil {
		return "", classify("stack-status", target.Key(), err)
	}
	if len(out.Stacks) == 0 {
		return "", NewError("stack-status", target.Key(), KindNotFound,
			fmt.Errorf("stack %s not found", f.opts.Stack))
	}
	return string(out.Stacks[0].StackStatus), nil
}

// RegistryExists verifies the ECR repository resolves.
func (f *AWSFacade) RegistryExists(ctx context.Context, target types.DeploymentTarget) error {
	_, err := f.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{f.opts.Repository},
	})
	if err != nil {
		return classify("registry-exists", target.Key(), err)
	}
	return nil
}

// ClusterExists verifies the ECS cluster resolves.
func (f *AWSFacade) ClusterExists(ctx context.Context, target types.DeploymentTarget) error {
	out, err := f.ecs.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{target.Cluster},
	})
	if err != nil {
		return classify("cluster-exists", target.Key(), err)
	}
	if len(out.Clusters) == 0 {
		return NewError("cluster-exists", target.Key(), KindNotFound,
			errors.New("cluster not found"))
	}
	return nil
}

// SecretExists verifies a declared secret handle resolves.
func (f *AWSFacade) SecretExists(ctx context.Context, name string) error {
	_, err := f.secrets.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return classify("secret-exists", name, err)
	}
	return nil
}

// rolloutState maps the primary deployment's rollout state onto the domain
// enum. A service without deployments has not started rolling out yet.
func rolloutState(svc ecstypes.Service) types.RolloutState {
	for _, d := range svc.Deployments {
		if d.Status == nil || *d.Status != "PRIMARY" {
			continue
		}
		switch d.RolloutState {
		case ecstypes.DeploymentRolloutStateCompleted:
			return types.RolloutCompleted
		case ecstypes.DeploymentRolloutStateFailed:
			return types.RolloutFailed
		case ecstypes.DeploymentRolloutStateInProgress:
			return types.RolloutInProgress
		}
	}
	return types.RolloutPending
}

// revisionFromARN parses "arn:...:task-definition/family:revision".
func revisionFromARN(arn string) types.RevisionRef {
	ref := types.RevisionRef{Handle: arn}
	if idx := strings.LastIndex(arn, "/"); idx >= 0 {
		name := arn[idx+1:]
		if colon := strings.LastIndex(name, ":"); colon >= 0 {
			ref.Family = name[:colon]
		} else {
			ref.Family = name
		}
	}
	return ref
}

// notFoundCodes are the platform error codes that mean the addressed object
// does not exist rather than the platform being unreachable.
var notFoundCodes = map[string]bool{
	"ClusterNotFoundException":    true,
	"ServiceNotFoundException":    true,
	"RepositoryNotFoundException": true,
	"ResourceNotFoundException":   true,
}

func classify(op, target string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if notFoundCodes[code] {
			return NewError(op, target, KindNotFound, err)
		}
		// CloudFormation reports a missing stack as a validation error.
		if code == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return NewError(op, target, KindNotFound, err)
		}
	}
	return NewError(op, target, KindUnavailable, err)
}
