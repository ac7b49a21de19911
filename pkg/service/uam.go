package service

import (
	"sort"
	"sync"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/model"
)

const UAMServiceKey = "UAMService"

// rootGroupName anchors the org tree. It always exists and cannot be
// removed.
const rootGroupName = "Org"

// UAMService keeps the in-memory user and group records and their
// hierarchy. Groups form an arena: every group holds ids only, the service
// owns the records, and linking is an explicit operation that rejects
// cycles.
type UAMService interface {
	UpsertUser(user model.UAMUser)
	GetUser(email string) (model.UAMUser, error)
	Users() []model.UAMUser
	// DeleteUser removes the user record and its membership in every
	// group. Unknown users are a no-op.
	DeleteUser(email string)

	UpsertGroup(group model.UAMGroup) error
	GetGroup(name string) (model.UAMGroup, error)
	Groups() []model.UAMGroup
	// DeleteGroup removes the group record and unlinks it from every
	// parent. Users stay in the system. The root group cannot be removed.
	DeleteGroup(name string) error

	// Link makes `child` a subgroup of `parent`. Linking fails when it
	// would close a cycle.
	Link(parent, child string) error
	Unlink(parent, child string) error

	// SetMembers replaces the group's user list with the given emails.
	// Every email must name an existing user; an empty list is a no-op.
	SetMembers(name string, emails []string) error
	// GroupUsers returns the group's members, including every descendant
	// group's members when recursive is set.
	GroupUsers(name string, recursive bool) ([]model.UAMUser, error)

	// SetRoles replaces the roles attached to the group.
	SetRoles(name string, roles []string) error
	// InheritedRoles returns role → source groups for the user: every
	// group that contains the user, directly or through a descendant
	// group, contributes its roles.
	InheritedRoles(email string) (map[string][]string, error)

	// Tree renders the hierarchy from the root group down.
	Tree() *model.UAMTreeNode
}

type uamService struct {
	lock   sync.RWMutex
	users  map[string]model.UAMUser
	groups map[string]*model.UAMGroup
	once   sync.Once
}

func (u *uamService) init() {
	u.once.Do(func() {
		u.users = map[string]model.UAMUser{}
		u.groups = map[string]*model.UAMGroup{
			rootGroupName: {Name: rootGroupName},
		}
	})
}

func (u *uamService) UpsertUser(user model.UAMUser) {
	u.init()
	u.lock.Lock()
	defer u.lock.Unlock()
	u.users[user.Email] = user
}

func (u *uamService) GetUser(email string) (model.UAMUser, error) {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()
	user, ok := u.users[email]
	if !ok {
		return model.UAMUser{}, except.NewError("user %s not found", except.ErrNotFound, email)
	}
	return user, nil
}

func (u *uamService) Users() []model.UAMUser {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()
	out := make([]model.UAMUser, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (u *uamService) DeleteUser(email string) {
	u.init()
	u.lock.Lock()
	defer u.lock.Unlock()
	delete(u.users, email)
	for _, group := range u.groups {
		group.Users = remove(group.Users, email)
	}
}

func (u *uamService) UpsertGroup(group model.UAMGroup) error {
	u.init()
	if group.Name == "" {
		return except.NewError("group name must not be empty", except.ErrInvalid)
	}

	u.lock.Lock()
	defer u.lock.Unlock()

	// Child links, members and roles are managed through their dedicated
	// operations so an upsert can never smuggle in a cycle or an unknown
	// user.
	existing, ok := u.groups[group.Name]
	if ok {
		group.Children = existing.Children
		group.Users = existing.Users
		group.Roles = existing.Roles
	} else {
		group.Children = nil
		group.Users = nil
		group.Roles = nil
	}
	u.groups[group.Name] = &group
	return nil
}

func (u *uamService) GetGroup(name string) (model.UAMGroup, error) {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()
	group, ok := u.groups[name]
	if !ok {
		return model.UAMGroup{}, except.NewError("group %s not found", except.ErrNotFound, name)
	}
	return *group, nil
}

func (u *uamService) Groups() []model.UAMGroup {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()
	out := make([]model.UAMGroup, 0, len(u.groups))
	for _, group := range u.groups {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (u *uamService) DeleteGroup(name string) error {
	u.init()
	if name == rootGroupName {
		return except.NewError("cannot delete the %s group", except.ErrInvalid, rootGroupName)
	}

	u.lock.Lock()
	defer u.lock.Unlock()
	if _, ok := u.groups[name]; !ok {
		return nil
	}
	delete(u.groups, name)
	for _, group := range u.groups {
		group.Children = remove(group.Children, name)
	}
	return nil
}

func (u *uamService) Link(parent, child string) error {
	u.init()
	u.lock.Lock()
	defer u.lock.Unlock()

	parentGroup, ok := u.groups[parent]
	if !ok {
		return except.NewError("group %s not found", except.ErrNotFound, parent)
	}
	if _, ok := u.groups[child]; !ok {
		return except.NewError("group %s not found", except.ErrNotFound, child)
	}
	if parent == child {
		return except.NewError("group %s cannot contain itself", except.ErrConflict, parent)
	}

	// Walk up from the parent: if the child is already an ancestor the
	// link would close a cycle.
	if u.isAncestor(child, parent) {
		return except.NewError("linking %s under %s would create a cycle", except.ErrConflict, child, parent)
	}

	for _, existing := range parentGroup.Children {
		if existing == child {
			return nil
		}
	}
	parentGroup.Children = append(parentGroup.Children, child)
	return nil
}

func (u *uamService) Unlink(parent, child string) error {
	u.init()
	u.lock.Lock()
	defer u.lock.Unlock()

	parentGroup, ok := u.groups[parent]
	if !ok {
		return except.NewError("group %s not found", except.ErrNotFound, parent)
	}
	for _, existing := range parentGroup.Children {
		if existing == child {
			parentGroup.Children = remove(parentGroup.Children, child)
			return nil
		}
	}
	return except.NewError("group %s is not a subgroup of %s", except.ErrNotFound, child, parent)
}

func (u *uamService) SetMembers(name string, emails []string) error {
	u.init()
	if len(emails) == 0 {
		return nil
	}

	u.lock.Lock()
	defer u.lock.Unlock()

	group, ok := u.groups[name]
	if !ok {
		return except.NewError("group %s not found", except.ErrNotFound, name)
	}
	for _, email := range emails {
		if _, ok := u.users[email]; !ok {
			return except.NewError("user %s not found", except.ErrNotFound, email)
		}
	}

	members := append([]string{}, emails...)
	sort.Strings(members)
	group.Users = members
	return nil
}

func (u *uamService) GroupUsers(name string, recursive bool) ([]model.UAMUser, error) {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()

	if _, ok := u.groups[name]; !ok {
		return nil, except.NewError("group %s not found", except.ErrNotFound, name)
	}

	seen := map[string]model.UAMUser{}
	var walk func(gname string)
	walk = func(gname string) {
		group, ok := u.groups[gname]
		if !ok {
			return
		}
		for _, email := range group.Users {
			if user, ok := u.users[email]; ok {
				seen[email] = user
			}
		}
		if !recursive {
			return
		}
		for _, child := range group.Children {
			walk(child)
		}
	}
	walk(name)

	out := make([]model.UAMUser, 0, len(seen))
	for _, user := range seen {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (u *uamService) SetRoles(name string, roles []string) error {
	u.init()
	u.lock.Lock()
	defer u.lock.Unlock()

	group, ok := u.groups[name]
	if !ok {
		return except.NewError("group %s not found", except.ErrNotFound, name)
	}
	group.Roles = append([]string{}, roles...)
	sort.Strings(group.Roles)
	return nil
}

func (u *uamService) InheritedRoles(email string) (map[string][]string, error) {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()

	if _, ok := u.users[email]; !ok {
		return nil, except.NewError("user %s not found", except.ErrNotFound, email)
	}

	// Walk the tree tracking the ancestor chain. Wherever the user is a
	// member, every group on the chain grants its roles.
	pool := map[string]bool{}
	var walk func(gname string, parents []string)
	walk = func(gname string, parents []string) {
		group, ok := u.groups[gname]
		if !ok {
			return
		}
		parents = append(parents, gname)
		for _, member := range group.Users {
			if member == email {
				for _, parent := range parents {
					pool[parent] = true
				}
				break
			}
		}
		for _, child := range group.Children {
			walk(child, parents)
		}
	}
	walk(rootGroupName, nil)

	inherited := map[string][]string{}
	for gname := range pool {
		for _, role := range u.groups[gname].Roles {
			inherited[role] = append(inherited[role], gname)
		}
	}
	for role := range inherited {
		sort.Strings(inherited[role])
	}
	return inherited, nil
}

// isAncestor reports whether `ancestor` can reach `name` by walking child
// links downward. Caller holds the lock.
func (u *uamService) isAncestor(ancestor, name string) bool {
	if ancestor == name {
		return true
	}
	group, ok := u.groups[ancestor]
	if !ok {
		return false
	}
	for _, child := range group.Children {
		if u.isAncestor(child, name) {
			return true
		}
	}
	return false
}

func (u *uamService) Tree() *model.UAMTreeNode {
	u.init()
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.renderNode(rootGroupName)
}

func (u *uamService) renderNode(name string) *model.UAMTreeNode {
	group, ok := u.groups[name]
	if !ok {
		return nil
	}
	node := &model.UAMTreeNode{Id: group.Name, Label: group.Name}
	if group.Description != "" {
		node.Label = group.Description
	}

	children := append([]string{}, group.Children...)
	sort.Strings(children)
	for _, child := range children {
		if rendered := u.renderNode(child); rendered != nil {
			node.Children = append(node.Children, rendered)
		}
	}
	return node
}

func remove(list []string, item string) []string {
	for i, existing := range list {
		if existing == item {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
