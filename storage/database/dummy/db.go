package dummydb

import (
	"sync"

	"github.com/darasahq/darasa/core/chat"
	"github.com/darasahq/darasa/core/presence"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user     *userTable
		chat     *chatTables
		presence *presenceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	chatTables struct {
		sync.RWMutex
		conversations map[string]*chat.Conversation
		directKeys    map[string]string // DirectKey -> conversation id
		messages      map[string]*chat.Message
	}

	presenceTable struct {
		sync.RWMutex
		table map[string]*presence.Record
		subs  []chan presence.Record
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		chat: &chatTables{
			conversations: make(map[string]*chat.Conversation),
			directKeys:    make(map[string]string),
			messages:      make(map[string]*chat.Message),
		},
		presence: &presenceTable{table: make(map[string]*presence.Record)},
	}
	return db, nil
}
