// Command dialoguedump compiles the quest content and prints every
// dialogue option ID per NPC. Two runs over the same content must print
// the same table.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
)

func main() {
	questsDir := flag.String("quests", "data/quests", "Directory of quest YAML files")
	flag.Parse()

	registry := quest.NewRegistry()
	if err := registry.LoadFromDirectory(*questsDir); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded %d quests\n", registry.Count())
	dump(os.Stdout, registry)
}

func dump(w io.Writer, registry *quest.Registry) {
	for _, npc := range registry.NPCTypes() {
		fmt.Fprintf(w, "\n%s:\n", npc)
		for _, id := range registry.OptionIDs(npc) {
			opt, _ := registry.Option(npc, id)
			fmt.Fprintf(w, "  %d  %s%s\n", id, truncate(opt.Text, 60), flags(opt))
		}
	}
}

func flags(opt *quest.DialogueOption) string {
	var parts []string
	if opt.Exit {
		parts = append(parts, "exit")
	}
	if opt.Dismiss {
		parts = append(parts, "dismiss")
	}
	if opt.HasNext() {
		parts = append(parts, fmt.Sprintf("next:%d", len(opt.Next.Options)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, " ") + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
