package graph

// chatNode builds a node with a "result" static output and an optional
// error output.
func chatNode(id string, withCatch bool) Node {
	n := Node{
		ID:   id,
		Type: TypeChat,
		Name: "AI chat " + id,
		Inputs: []InputItem{
			{Key: "model", ValueType: ValueString, Value: "gpt-4o"},
			{Key: "userChatInput", ValueType: ValueString},
		},
		Outputs: []OutputItem{
			{ID: "result", Key: "result", Kind: OutputStatic, ValueType: ValueString},
		},
	}
	if withCatch {
		n.Outputs = append(n.Outputs, OutputItem{Key: "error", Kind: OutputError, ValueType: ValueObject})
	}
	return n
}

func startNode(id string) Node {
	return Node{
		ID:      id,
		Type:    TypeWorkflowStart,
		Name:    "Start",
		Outputs: []OutputItem{{Key: "userChatInput", Kind: OutputStatic, ValueType: ValueString}},
	}
}

func connect(from, fromKey, to string) Edge {
	return Edge{
		Source:       from,
		SourceHandle: SourceHandle(from, fromKey),
		Target:       to,
		TargetHandle: TargetHandle(to, HandleLeft),
	}
}

func intPtr(i int) *int { return &i }
