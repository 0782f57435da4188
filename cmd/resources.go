package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	pkgstrings "github.com/PrefectHQ/fastmcp/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

// Resources-specific flags
var (
	resourcesServer string
)

// resourcesCmd represents the resources command group
var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "List and read MCP server resources",
	Long: `List and read resources exposed by an MCP server.

Examples:
  fastmcp resources list               # Resources on the default server
  fastmcp resources list -s production
  fastmcp resources get file:///data/report.txt`,
}

// resourcesListCmd represents the resources list command
var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available resources",
	RunE:  runResourcesList,
}

// resourcesGetCmd represents the resources get command
var resourcesGetCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Read a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runResourcesGet,
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
	resourcesCmd.AddCommand(resourcesListCmd)
	resourcesCmd.AddCommand(resourcesGetCmd)

	resourcesCmd.PersistentFlags().StringVarP(&resourcesServer, "server", "s", "", "Server name or URL (default: defaultServer from config)")
}

func runResourcesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := connectForCommand(ctx, resourcesServer)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	resources, err := c.ListResources(ctx)
	if err != nil {
		return err
	}

	if len(resources) == 0 {
		fmt.Println("No resources available.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("URI"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("MIME TYPE"),
	})
	for _, resource := range resources {
		t.AppendRow(table.Row{
			resource.URI,
			pkgstrings.TruncateDescription(resource.Name, pkgstrings.DefaultDescriptionMaxLen),
			resource.MIMEType,
		})
	}
	t.Render()
	return nil
}

func runResourcesGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := connectForCommand(ctx, resourcesServer)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	result, err := c.ReadResource(ctx, args[0])
	if err != nil {
		return err
	}

	if len(result.Contents) == 0 {
		fmt.Println("Resource has no content.")
		return nil
	}

	for _, content := range result.Contents {
		switch v := content.(type) {
		case mcp.TextResourceContents:
			var jsonObj interface{}
			if err := json.Unmarshal([]byte(v.Text), &jsonObj); err == nil {
				if b, err := json.MarshalIndent(jsonObj, "", "  "); err == nil {
					fmt.Println(string(b))
					continue
				}
			}
			fmt.Println(v.Text)
		case mcp.BlobResourceContents:
			fmt.Printf("[Binary: MIME type %s, %d bytes base64]\n", v.MIMEType, len(v.Blob))
		default:
			fmt.Printf("%+v\n", content)
		}
	}
	return nil
}
