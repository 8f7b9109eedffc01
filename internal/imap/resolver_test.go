package imap

import (
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"

	"github.com/vdavid/vmail-lite/internal/models"
)

func folder(path string, attrs ...string) FolderInfo {
	return FolderInfo{Path: path, Delimiter: "/", Attributes: attrs}
}

func TestResolveSystemFolders(t *testing.T) {
	tests := []struct {
		name          string
		listing       []FolderInfo
		want          SystemFolders
		wantFallbacks []models.FolderRole
	}{
		{
			name: "special-use attributes",
			listing: []FolderInfo{
				folder("INBOX"),
				folder("Papierkorb", imap.TrashAttr),
				folder("Spam", imap.JunkAttr),
				folder("Gesendet", imap.SentAttr),
				folder("Entwürfe", imap.DraftsAttr),
				folder("Archiv", imap.ArchiveAttr),
			},
			want: SystemFolders{Trash: "Papierkorb", Junk: "Spam", Sent: "Gesendet", Drafts: "Entwürfe", Archive: "Archiv"},
		},
		{
			name: "attribute wins over an earlier keyword match",
			listing: []FolderInfo{
				folder("INBOX"),
				folder("Sent Items"),
				folder("Outbox", imap.SentAttr),
			},
			want:          SystemFolders{Trash: "Trash", Junk: "Junk", Sent: "Outbox", Drafts: "Drafts", Archive: "Archive"},
			wantFallbacks: []models.FolderRole{models.RoleTrash, models.RoleJunk, models.RoleDrafts, models.RoleArchive},
		},
		{
			name: "turkish names",
			listing: []FolderInfo{
				folder("INBOX"),
				folder("Çöp Kutusu"),
				folder("İstenmeyen"),
				folder("GÖNDERİLEN"),
				folder("Taslaklar"),
				folder("Arşiv"),
			},
			want: SystemFolders{Trash: "Çöp Kutusu", Junk: "İstenmeyen", Sent: "GÖNDERİLEN", Drafts: "Taslaklar", Archive: "Arşiv"},
		},
		{
			name: "first folder in listing order wins",
			listing: []FolderInfo{
				folder("INBOX"),
				folder("Trash"),
				folder("Deleted Items"),
			},
			want:          SystemFolders{Trash: "Trash", Junk: "Junk", Sent: "Sent", Drafts: "Drafts", Archive: "Archive"},
			wantFallbacks: []models.FolderRole{models.RoleJunk, models.RoleSent, models.RoleDrafts, models.RoleArchive},
		},
		{
			name: "a folder is never given two roles",
			listing: []FolderInfo{
				folder("INBOX"),
				folder("Spam and Trash"),
			},
			want:          SystemFolders{Trash: "Spam and Trash", Junk: "Junk", Sent: "Sent", Drafts: "Drafts", Archive: "Archive"},
			wantFallbacks: []models.FolderRole{models.RoleJunk, models.RoleSent, models.RoleDrafts, models.RoleArchive},
		},
		{
			name:          "empty listing falls back to canonical names",
			listing:       nil,
			want:          SystemFolders{Trash: "Trash", Junk: "Junk", Sent: "Sent", Drafts: "Drafts", Archive: "Archive"},
			wantFallbacks: models.SystemRoles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fallbacks := ResolveSystemFolders(tt.listing)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFallbacks, fallbacks)
		})
	}
}

func TestResolveSystemFoldersIsDeterministic(t *testing.T) {
	listing := []FolderInfo{
		folder("INBOX"),
		folder("Junk E-mail"),
		folder("spam"),
		folder("Sent", imap.SentAttr),
		folder("Sent Messages"),
		folder("Drafts"),
	}

	first, _ := ResolveSystemFolders(listing)
	for i := 0; i < 20; i++ {
		again, _ := ResolveSystemFolders(listing)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "Junk E-mail", first.Junk)
	assert.Equal(t, "Sent", first.Sent)
}

func TestAnnotateFolders(t *testing.T) {
	listing := []FolderInfo{
		folder("INBOX"),
		folder("Sent"),
		folder("Sent Items", imap.SentAttr),
		folder("Trash", imap.TrashAttr),
		folder("Old Trash", imap.TrashAttr),
		folder("Taslaklar"),
		folder("Projects"),
		folder("Spam"),
		folder("Spam Archive"),
	}

	got := AnnotateFolders(listing)

	want := []models.FolderRole{
		models.RoleInbox,
		models.RoleUser,
		models.RoleSent,
		models.RoleTrash,
		models.RoleUser,
		models.RoleDrafts,
		models.RoleUser,
		models.RoleJunk,
		models.RoleArchive,
	}
	if assert.Len(t, got, len(want)) {
		for i := range want {
			assert.Equal(t, listing[i].Path, got[i].Path)
			assert.Equal(t, want[i], got[i].Type, "folder %s", listing[i].Path)
		}
	}
}

func TestAnnotateFoldersRolesAreDistinct(t *testing.T) {
	listing := []FolderInfo{
		folder("INBOX"),
		folder("inbox-old"),
		folder("Trash", imap.TrashAttr),
		folder("Trash 2"),
		folder("Deleted"),
		folder("Junk"),
		folder("Spam"),
		folder("Sent"),
		folder("Giden Kutusu"),
		folder("Drafts", imap.DraftsAttr),
		folder("Drafts", imap.DraftsAttr),
	}

	seen := make(map[models.FolderRole]string)
	for _, f := range AnnotateFolders(listing) {
		if f.Type == models.RoleUser {
			continue
		}
		prev, dup := seen[f.Type]
		assert.False(t, dup, "role %s given to both %q and %q", f.Type, prev, f.Path)
		seen[f.Type] = f.Path
	}
}

func TestResolveFolder(t *testing.T) {
	system := SystemFolders{Trash: "Çöp", Junk: "Spam", Sent: "Sent Items", Drafts: "Taslaklar", Archive: "Archive"}

	tests := []struct {
		query    string
		wantPath string
		wantRole models.FolderRole
	}{
		{"", "INBOX", models.RoleInbox},
		{"INBOX", "INBOX", models.RoleInbox},
		{"STARRED", "INBOX", models.RoleStarred},
		{"DRAFTS", "Taslaklar", models.RoleDrafts},
		{"SENT", "Sent Items", models.RoleSent},
		{"SPAM", "Spam", models.RoleJunk},
		{"JUNK", "Spam", models.RoleJunk},
		{"TRASH", "Çöp", models.RoleTrash},
		{"ARCHIVE", "Archive", models.RoleArchive},
		{"Projects/2024", "Projects/2024", models.RoleUser},
		{"sent", "sent", models.RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			path, role := ResolveFolder(tt.query, system)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestNeedsResolution(t *testing.T) {
	assert.False(t, NeedsResolution(""))
	assert.False(t, NeedsResolution("INBOX"))
	assert.False(t, NeedsResolution("STARRED"))
	assert.False(t, NeedsResolution("Projects"))
	assert.True(t, NeedsResolution("TRASH"))
	assert.True(t, NeedsResolution("SENT"))
}
