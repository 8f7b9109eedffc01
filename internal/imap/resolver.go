package imap

import (
	"strings"

	"github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/models"
)

// FolderInfo is one entry of a raw LIST response.
type FolderInfo struct {
	Path       string
	Delimiter  string
	Attributes []string
}

// SystemFolders holds the resolved server path of every system role.
// Every field is non-empty: unresolved roles carry their canonical name.
type SystemFolders struct {
	Trash   string
	Junk    string
	Sent    string
	Drafts  string
	Archive string
}

// Path returns the server folder for role. INBOX and STARRED both live in
// INBOX; USER has no fixed folder.
func (f SystemFolders) Path(role models.FolderRole) string {
	switch role {
	case models.RoleInbox, models.RoleStarred:
		return "INBOX"
	case models.RoleTrash:
		return f.Trash
	case models.RoleJunk:
		return f.Junk
	case models.RoleSent:
		return f.Sent
	case models.RoleDrafts:
		return f.Drafts
	case models.RoleArchive:
		return f.Archive
	default:
		return ""
	}
}

func (f *SystemFolders) set(role models.FolderRole, path string) {
	switch role {
	case models.RoleTrash:
		f.Trash = path
	case models.RoleJunk:
		f.Junk = path
	case models.RoleSent:
		f.Sent = path
	case models.RoleDrafts:
		f.Drafts = path
	case models.RoleArchive:
		f.Archive = path
	}
}

var specialUseAttrs = map[models.FolderRole]string{
	models.RoleTrash:   imap.TrashAttr,
	models.RoleJunk:    imap.JunkAttr,
	models.RoleSent:    imap.SentAttr,
	models.RoleDrafts:  imap.DraftsAttr,
	models.RoleArchive: imap.ArchiveAttr,
}

// Keywords are matched as substrings of the folded folder path. English plus
// the Turkish names used by local providers.
var roleKeywords = map[models.FolderRole][]string{
	models.RoleTrash:   {"trash", "çöp", "deleted"},
	models.RoleJunk:    {"junk", "spam", "istenmeyen"},
	models.RoleSent:    {"sent", "gönderil", "giden"},
	models.RoleDrafts:  {"draft", "taslak"},
	models.RoleArchive: {"archive", "arşiv"},
}

var canonicalNames = map[models.FolderRole]string{
	models.RoleTrash:   "Trash",
	models.RoleJunk:    "Junk",
	models.RoleSent:    "Sent",
	models.RoleDrafts:  "Drafts",
	models.RoleArchive: "Archive",
}

// CanonicalName is the folder name used when a role cannot be resolved, and
// the name used when such a folder has to be created.
func CanonicalName(role models.FolderRole) string {
	return canonicalNames[role]
}

// foldName lowercases a path for keyword matching. Lowercasing a dotted
// capital I yields i plus a combining dot, which is dropped so "GÖNDERİLEN"
// still matches "gönderil".
func foldName(path string) string {
	return strings.ReplaceAll(strings.ToLower(path), "\u0307", "")
}

func hasAttr(f FolderInfo, attr string) bool {
	for _, a := range f.Attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

func matchesKeyword(f FolderInfo, role models.FolderRole) bool {
	name := foldName(f.Path)
	for _, k := range roleKeywords[role] {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func specialUseRole(f FolderInfo) models.FolderRole {
	for _, role := range models.SystemRoles {
		if hasAttr(f, specialUseAttrs[role]) {
			return role
		}
	}
	return models.RoleUser
}

// ResolveSystemFolders maps every system role to a server folder. Special-use
// attributes win over name keywords; within a pass the first folder in
// listing order wins and a folder is never given to two roles.
func ResolveSystemFolders(listing []FolderInfo) (SystemFolders, []models.FolderRole) {
	var result SystemFolders
	resolved := make(map[models.FolderRole]bool, len(models.SystemRoles))
	claimed := make(map[string]bool, len(models.SystemRoles))

	for _, role := range models.SystemRoles {
		for _, f := range listing {
			if !claimed[f.Path] && hasAttr(f, specialUseAttrs[role]) {
				result.set(role, f.Path)
				resolved[role] = true
				claimed[f.Path] = true
				break
			}
		}
	}

	for _, role := range models.SystemRoles {
		if resolved[role] {
			continue
		}
		for _, f := range listing {
			if claimed[f.Path] || strings.EqualFold(f.Path, "INBOX") {
				continue
			}
			if matchesKeyword(f, role) {
				result.set(role, f.Path)
				resolved[role] = true
				claimed[f.Path] = true
				break
			}
		}
	}

	var fallbacks []models.FolderRole
	for _, role := range models.SystemRoles {
		if !resolved[role] {
			result.set(role, canonicalNames[role])
			fallbacks = append(fallbacks, role)
		}
	}

	return result, fallbacks
}

// AnnotateFolders labels every folder of a listing with exactly one role.
// Special-use attributes are applied first; name heuristics then fill only
// the roles still missing, so no two folders share a non-USER role.
func AnnotateFolders(listing []FolderInfo) []models.Folder {
	folders := make([]models.Folder, len(listing))
	found := make(map[models.FolderRole]bool)

	for i, f := range listing {
		role := specialUseRole(f)
		if role != models.RoleUser && found[role] {
			role = models.RoleUser
		}
		if role != models.RoleUser {
			found[role] = true
		}
		folders[i] = models.Folder{Name: f.Path, Path: f.Path, Type: role}
	}

	for i, f := range listing {
		if folders[i].Type != models.RoleUser {
			continue
		}

		if foldName(f.Path) == "inbox" {
			if !found[models.RoleInbox] {
				folders[i].Type = models.RoleInbox
				found[models.RoleInbox] = true
			}
			continue
		}

		for _, role := range models.SystemRoles {
			if !found[role] && matchesKeyword(f, role) {
				folders[i].Type = role
				found[role] = true
				break
			}
		}
	}

	return folders
}

// ResolveFolder turns a folder query from the API into a server path. The
// role aliases are exact upper-case names; anything else is a literal path.
func ResolveFolder(query string, system SystemFolders) (string, models.FolderRole) {
	role, ok := aliasRole(query)
	if !ok {
		return query, models.RoleUser
	}
	return system.Path(role), role
}

// NeedsResolution reports whether answering query requires a folder listing.
func NeedsResolution(query string) bool {
	role, ok := aliasRole(query)
	return ok && role != models.RoleInbox && role != models.RoleStarred
}

func aliasRole(query string) (models.FolderRole, bool) {
	switch query {
	case "", "INBOX":
		return models.RoleInbox, true
	case "STARRED":
		return models.RoleStarred, true
	case "DRAFTS":
		return models.RoleDrafts, true
	case "SENT":
		return models.RoleSent, true
	case "SPAM", "JUNK":
		return models.RoleJunk, true
	case "TRASH":
		return models.RoleTrash, true
	case "ARCHIVE":
		return models.RoleArchive, true
	default:
		return "", false
	}
}
