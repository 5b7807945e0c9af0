package conversation

import "github.com/k7lim/claude-run/internal/core/models"

// Branch reconstructs a single linear viewing path through the parentUuid
// tree. Messages are partitioned into roots (no parentUuid) and a
// parent-to-children multimap preserving file order. Starting from the
// first root, descent picks the recorded choice for that fork when one
// exists, else the last-listed child (the most recently appended branch),
// and stops at a leaf.
//
// choices maps a fork point's uuid to the uuid of the child to descend
// into; it is client-local state, never persisted.
//
// Entries without a uuid sit outside the tree entirely (summaries, and
// turns from log formats that predate message ids); they are kept at the
// front of the result rather than dropped. If no root exists at all (empty
// input, or every message dangles from an unresolvable parent) the input is
// returned unchanged, privileging availability over ordering.
func Branch(messages []models.ConversationMessage, choices map[string]string) []models.ConversationMessage {
	var head []models.ConversationMessage
	byUUID := make(map[string]int)
	children := make(map[string][]int)
	var roots []int

	for i := range messages {
		m := &messages[i]
		if m.UUID == "" {
			head = append(head, *m)
			continue
		}
		byUUID[m.UUID] = i
		if m.ParentUUID == "" {
			roots = append(roots, i)
		} else {
			children[m.ParentUUID] = append(children[m.ParentUUID], i)
		}
	}

	if len(roots) == 0 {
		return messages
	}

	branch := head
	cur := roots[0]
	for {
		branch = append(branch, messages[cur])
		kids := children[messages[cur].UUID]
		if len(kids) == 0 {
			break
		}

		next := kids[len(kids)-1]
		if chosen, ok := choices[messages[cur].UUID]; ok {
			if j, ok := byUUID[chosen]; ok && isChild(kids, j) {
				next = j
			}
		}
		cur = next
	}

	return branch
}

// ForkPoints returns the uuids of messages with more than one recorded
// child, in file order.
func ForkPoints(messages []models.ConversationMessage) []string {
	counts := make(map[string]int)
	for i := range messages {
		if messages[i].ParentUUID != "" {
			counts[messages[i].ParentUUID]++
		}
	}

	var forks []string
	for i := range messages {
		if messages[i].UUID != "" && counts[messages[i].UUID] > 1 {
			forks = append(forks, messages[i].UUID)
		}
	}
	return forks
}

func isChild(kids []int, j int) bool {
	for _, k := range kids {
		if k == j {
			return true
		}
	}
	return false
}
