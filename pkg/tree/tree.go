package tree

// FindByID finds an entry by document-id in a resolved tree (recursive).
func FindByID(root *Entry, id string) *Entry {
	if root == nil {
		return nil
	}
	if root.DocumentID == id {
		return root
	}
	for _, child := range root.Entries {
		if found := FindByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// FindByHash finds an entry by hash in a resolved tree (recursive).
func FindByHash(root *Entry, hash string) *Entry {
	if root == nil {
		return nil
	}
	if root.Hash == hash {
		return root
	}
	for _, child := range root.Entries {
		if found := FindByHash(child, hash); found != nil {
			return found
		}
	}
	return nil
}

// Count counts all entries in a resolved tree, the root included.
func Count(root *Entry) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Entries {
		count += Count(child)
	}
	return count
}

// Documents returns all document leaves in a resolved tree.
func Documents(root *Entry) []*Entry {
	var docs []*Entry
	if root == nil {
		return docs
	}
	if root.Kind == KindDocument {
		return append(docs, root)
	}
	for _, child := range root.Entries {
		docs = append(docs, Documents(child)...)
	}
	return docs
}

// Flatten returns all entries in a flat map keyed by hash.
func Flatten(root *Entry) map[string]*Entry {
	result := make(map[string]*Entry)
	if root == nil {
		return result
	}
	flattenRecursive(root, result)
	return result
}

func flattenRecursive(entry *Entry, result map[string]*Entry) {
	result[entry.Hash] = entry
	for _, child := range entry.Entries {
		flattenRecursive(child, result)
	}
}
