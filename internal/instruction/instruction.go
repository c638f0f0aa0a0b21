// Package instruction assembles the Bedrock agent instruction for the
// text-to-SQL chatbot and optionally refines it through the model itself.
package instruction

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/querybridge/text2sql-aws-cdk/internal/athenaq"
	"github.com/querybridge/text2sql-aws-cdk/internal/datasource"
)

// MaxLen is the instruction length the refine prompt asks the model to stay
// under.
const MaxLen = 4000

// fixedParts is the instruction skeleton: role, objective, the querying
// method, and the oversized-response fallback.
func fixedParts(database string) []string {
	return []string{
		fmt.Sprintf("Role: You are an advanced database querying agent crafted specifically for generating precise SQL queries for Amazon Athena concerning the %s.", database),
		"Objective: Generate SQL queries to return data based on the provided schema and user request. Ultimately, answer the user's question regarding the data generated using SQL Query.",
		"1. Query Decomposition and Understanding:",
		"- Analyze the user's request to understand the main objective.",
		"- Break down requests into sub-queries that can each address a part of the user's request, using the schema provided.",
		"2. SQL Query Creation:",
		"- For each sub-query, use the relevant tables and fields from the provided schema.",
		"- Construct SQL queries that are precise and tailored to retrieve the exact data required by the user's request.",
		"- Use table joins when combining data from two or more tables based on related columns. For example, if data is split across multiple tables, each containing different attributes about a common entity (such as building id), you may need to use a table join. Table joins are also useful when filtering data based on conditions that span multiple tables. Lastly, table joins are useful when aggregating data from multiple tables or enriching a dataset with additional context or descriptive information stored in another table. The types of joins are: INNER JOIN, LEFT JOIN, RIGHT JOIN, and FULL JOIN.",
		"- Avoid joins if all the required data is available in a single table.",
		"3. Query Execution and Response:",
		"- Execute the constructed SQL queries against the Amazon Athena database.",
		"- Return the results of the SQL query in a format that answers the user's question, ensuring data integrity and accuracy.",
		"If you get the following Lambda error:",
		"<lambda_error>",
		"Lambda response exceeds maximum size 25KB: 123644",
		"</lambda_error>",
		"Then: LIMIT to 10 rows.",
		"The following examples illustrate the kind of queries you should be able to construct based on the available data:",
	}
}

// Generate builds the instruction text for a database. tables may be nil when
// no schema context is available yet; the skeleton still stands on its own.
func Generate(database string, tables map[string]datasource.TableContext) string {
	parts := fixedParts(database)

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		table := strings.TrimSuffix(name, "/")
		parts = append(parts, fmt.Sprintf("- Table `%s` example query: %s", table, ExampleQuery(table, tables[name].Columns)))
	}

	return strings.Join(parts, " ")
}

// GenerateFromAthena builds the instruction from the live catalog, one
// example query per table.
func GenerateFromAthena(ctx context.Context, r *athenaq.Runner) (string, error) {
	tables, err := r.Tables(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tables: %w", err)
	}

	contexts := make(map[string]datasource.TableContext, len(tables))
	for _, table := range tables {
		columns, err := r.Columns(ctx, table)
		if err != nil {
			return "", fmt.Errorf("describing %s: %w", table, err)
		}
		contexts[table] = datasource.TableContext{Columns: columns}
	}

	return Generate(r.Database, contexts), nil
}

// ExampleQuery renders the sample SELECT the agent is shown for one table.
func ExampleQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	return fmt.Sprintf("SELECT %s FROM %q LIMIT 5;", strings.Join(quoted, ", "), table)
}

// RefinePrompt wraps an instruction in the meta-prompt that asks the model to
// rewrite it as one cohesive paragraph.
func RefinePrompt(instruction string) string {
	return fmt.Sprintf(
		"Craft a comprehensive and cohesive paragraph instruction for the Bedrock agent, ensuring the instruction "+
			"text includes all 7 contextual details and examples provided. The instruction should be detailed, precise "+
			"with a maximum length of %d characters. Clearly outline the agent's tasks and how it should interact "+
			"with users, incorporating the provided contextual details and examples with minimal changes. Avoid any "+
			"introductory phrases such as 'Here is your...'.\n\n"+
			"<Contextual details and examples>\n%s\n</Contextual details and examples>",
		MaxLen, instruction)
}

// TextInvoker produces model output for a text prompt.
type TextInvoker interface {
	InvokeText(ctx context.Context, prompt string) (string, error)
}

// Refine sends the instruction through the model and returns the rewritten
// paragraph.
func Refine(ctx context.Context, invoker TextInvoker, instruction string) (string, error) {
	refined, err := invoker.InvokeText(ctx, RefinePrompt(instruction))
	if err != nil {
		return "", fmt.Errorf("refining instruction: %w", err)
	}
	return strings.TrimSpace(refined), nil
}
