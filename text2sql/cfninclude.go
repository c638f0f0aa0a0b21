package text2sql

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/cloudformationinclude"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// CfnIncludeStack wraps an existing CloudFormation template with CDK. Teams
// that exported an earlier text-to-sql stack to a template can keep managing
// it through this module's deployment tooling and layer new constructs on
// top of it.
type CfnIncludeStack struct {
	awscdk.Stack

	// Template is the included CloudFormation template.
	Template cloudformationinclude.CfnInclude
}

// CfnIncludeConfig configures the CfnInclude stack.
type CfnIncludeConfig struct {
	// StackName is the CloudFormation stack name.
	StackName string

	// TemplateFile is the path to the template, JSON or YAML.
	TemplateFile string

	// Tags are AWS resource tags applied to all resources.
	Tags map[string]string
}

// NewCfnIncludeStack creates a CDK stack that wraps an existing template.
//
// Example:
//
//	app := text2sql.NewApp()
//	text2sql.NewCfnIncludeStack(app, text2sql.CfnIncludeConfig{
//	    StackName:    "text-2-sql",
//	    TemplateFile: "text2sql-stack.yaml",
//	})
//	text2sql.Synth(app)
func NewCfnIncludeStack(scope constructs.Construct, config CfnIncludeConfig) *CfnIncludeStack {
	stack := awscdk.NewStack(scope, jsii.String(config.StackName), &awscdk.StackProps{
		StackName: jsii.String(config.StackName),
		Tags:      convertTags(config.Tags),
	})

	template := cloudformationinclude.NewCfnInclude(stack, jsii.String("Template"), &cloudformationinclude.CfnIncludeProps{
		TemplateFile:       jsii.String(config.TemplateFile),
		PreserveLogicalIds: jsii.Bool(true),
	})

	return &CfnIncludeStack{
		Stack:    stack,
		Template: template,
	}
}

// GetResource retrieves a resource from the included template by logical ID.
func (s *CfnIncludeStack) GetResource(logicalID string) awscdk.CfnResource {
	return s.Template.GetResource(jsii.String(logicalID))
}
