package cliutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

var stdoutIsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

const (
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
	ansiReset  = "\x1b[0m"
)

func colorFor(status schemas.TaskStatus) string {
	switch status {
	case schemas.TaskStatusCompleted:
		return ansiGreen
	case schemas.TaskStatusFailed:
		return ansiRed
	case schemas.TaskStatusInProgress:
		return ansiYellow
	case schemas.TaskStatusCancelled:
		return ansiDim
	}
	return ""
}

func statusCell(status schemas.TaskStatus) string {
	if !stdoutIsTTY {
		return string(status)
	}
	color := colorFor(status)
	if color == "" {
		return string(status)
	}
	return color + string(status) + ansiReset
}

func PrintTasks(tasks []schemas.Task) {
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, task := range tasks {
		progress := ""
		if task.Progress != nil {
			progress = fmt.Sprintf(" %3.0f%%", *task.Progress)
		}
		stage := ""
		if task.Stage != "" {
			stage = " [" + task.Stage + "]"
		}
		fmt.Printf("%-26s %-12s%s%s %s\n", task.TaskID, statusCell(task.Status), progress, stage, task.Message)
	}
}

func PrintProducts(products []schemas.Product) {
	if len(products) == 0 {
		fmt.Println("no products")
		return
	}
	for _, product := range products {
		title := product.RedditPostTitle
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		fmt.Printf("%-26s %s\n", product.ProductID, title)
	}
}

func PrintInteraction(record *schemas.Interaction) {
	url := record.CommentURL
	if record.Mode == schemas.InteractionModePost {
		url = record.RedditPostURL
	}
	dryRun := ""
	if record.DryRun {
		dryRun = " (dry run)"
	}
	fmt.Printf("%s: r/%s%s\n", record.Mode, record.SubredditName, dryRun)
	if strings.TrimSpace(url) != "" {
		fmt.Println(url)
	}
}
