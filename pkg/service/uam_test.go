package service

import (
	"testing"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/stretchr/testify/suite"
)

type UAMTestSuite struct {
	suite.Suite

	uam UAMService
}

func (u *UAMTestSuite) SetupTest() {
	u.uam = &uamService{}
}

func (u *UAMTestSuite) TestUserLifecycle() {
	// -- Given
	//
	user := model.UAMUser{Email: "jo@example.com", Name: "Jo", Role: "dev"}

	// -- When
	//
	u.uam.UpsertUser(user)

	// -- Then
	//
	stored, err := u.uam.GetUser("jo@example.com")
	u.Require().NoError(err)
	u.Equal(user, stored)

	_, err = u.uam.GetUser("ghost@example.com")
	u.True(except.IsNotFound(err))
}

func (u *UAMTestSuite) TestLinkRejectsCycles() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "a"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "b"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "c"}))

	u.Require().NoError(u.uam.Link("Org", "a"))
	u.Require().NoError(u.uam.Link("a", "b"))
	u.Require().NoError(u.uam.Link("b", "c"))

	// -- When
	//
	errDirect := u.uam.Link("c", "a")
	errSelf := u.uam.Link("a", "a")

	// -- Then
	//
	u.Equal(except.ErrConflict, except.Reason(errDirect))
	u.Equal(except.ErrConflict, except.Reason(errSelf))
}

func (u *UAMTestSuite) TestLinkIsIdempotent() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "a"}))
	u.Require().NoError(u.uam.Link("Org", "a"))

	// -- When
	//
	err := u.uam.Link("Org", "a")

	// -- Then
	//
	u.NoError(err)
	group, gerr := u.uam.GetGroup("Org")
	u.Require().NoError(gerr)
	u.Equal([]string{"a"}, group.Children)
}

func (u *UAMTestSuite) TestUpsertCannotRewriteLinks() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "a"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "b"}))
	u.Require().NoError(u.uam.Link("a", "b"))

	// -- When
	//
	// An upsert that smuggles in children must not bypass the cycle check,
	// and members must not bypass the user-exists check.
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{
		Name:     "a",
		Children: []string{"x", "y"},
		Users:    []string{"ghost@example.com"},
	}))

	// -- Then
	//
	group, err := u.uam.GetGroup("a")
	u.Require().NoError(err)
	u.Equal([]string{"b"}, group.Children)
	u.Empty(group.Users)
}

func (u *UAMTestSuite) TestSetMembersIsCanonical() {
	// -- Given
	//
	u.uam.UpsertUser(model.UAMUser{Email: "jo@example.com", Name: "Jo"})
	u.uam.UpsertUser(model.UAMUser{Email: "max@example.com", Name: "Max"})
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform"}))
	u.Require().NoError(u.uam.SetMembers("platform", []string{"jo@example.com", "max@example.com"}))

	// -- When
	//
	err := u.uam.SetMembers("platform", []string{"max@example.com"})

	// -- Then
	//
	u.Require().NoError(err)
	group, gerr := u.uam.GetGroup("platform")
	u.Require().NoError(gerr)
	u.Equal([]string{"max@example.com"}, group.Users)

	// Unknown members reject the whole update.
	err = u.uam.SetMembers("platform", []string{"ghost@example.com"})
	u.True(except.IsNotFound(err))
	group, _ = u.uam.GetGroup("platform")
	u.Equal([]string{"max@example.com"}, group.Users)
}

func (u *UAMTestSuite) TestGroupUsersRecursive() {
	// -- Given
	//
	u.uam.UpsertUser(model.UAMUser{Email: "jo@example.com", Name: "Jo"})
	u.uam.UpsertUser(model.UAMUser{Email: "max@example.com", Name: "Max"})
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "runtime"}))
	u.Require().NoError(u.uam.Link("platform", "runtime"))
	u.Require().NoError(u.uam.SetMembers("platform", []string{"max@example.com"}))
	u.Require().NoError(u.uam.SetMembers("runtime", []string{"jo@example.com"}))

	// -- When
	//
	direct, errDirect := u.uam.GroupUsers("platform", false)
	all, errAll := u.uam.GroupUsers("platform", true)

	// -- Then
	//
	u.Require().NoError(errDirect)
	u.Require().NoError(errAll)
	u.Require().Len(direct, 1)
	u.Equal("max@example.com", direct[0].Email)
	u.Require().Len(all, 2)
	u.Equal("Jo", all[0].Name)
	u.Equal("Max", all[1].Name)
}

func (u *UAMTestSuite) TestInheritedRoles() {
	// -- Given
	//
	// jo sits in runtime, below platform, below Org. Roles attached
	// anywhere on that chain apply to jo.
	u.uam.UpsertUser(model.UAMUser{Email: "jo@example.com", Name: "Jo"})
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "runtime"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "sales"}))
	u.Require().NoError(u.uam.Link("Org", "platform"))
	u.Require().NoError(u.uam.Link("Org", "sales"))
	u.Require().NoError(u.uam.Link("platform", "runtime"))
	u.Require().NoError(u.uam.SetMembers("runtime", []string{"jo@example.com"}))
	u.Require().NoError(u.uam.SetRoles("platform", []string{"deploy"}))
	u.Require().NoError(u.uam.SetRoles("runtime", []string{"deploy", "oncall"}))
	u.Require().NoError(u.uam.SetRoles("sales", []string{"billing"}))

	// -- When
	//
	inherited, err := u.uam.InheritedRoles("jo@example.com")

	// -- Then
	//
	u.Require().NoError(err)
	u.Equal([]string{"platform", "runtime"}, inherited["deploy"])
	u.Equal([]string{"runtime"}, inherited["oncall"])
	u.NotContains(inherited, "billing")

	_, err = u.uam.InheritedRoles("ghost@example.com")
	u.True(except.IsNotFound(err))
}

func (u *UAMTestSuite) TestDeleteUserLeavesGroups() {
	// -- Given
	//
	u.uam.UpsertUser(model.UAMUser{Email: "jo@example.com", Name: "Jo"})
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform"}))
	u.Require().NoError(u.uam.SetMembers("platform", []string{"jo@example.com"}))

	// -- When
	//
	u.uam.DeleteUser("jo@example.com")

	// -- Then
	//
	_, err := u.uam.GetUser("jo@example.com")
	u.True(except.IsNotFound(err))
	group, gerr := u.uam.GetGroup("platform")
	u.Require().NoError(gerr)
	u.Empty(group.Users)
}

func (u *UAMTestSuite) TestDeleteGroup() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform"}))
	u.Require().NoError(u.uam.Link("Org", "platform"))

	// -- When
	//
	err := u.uam.DeleteGroup("platform")

	// -- Then
	//
	u.Require().NoError(err)
	_, gerr := u.uam.GetGroup("platform")
	u.True(except.IsNotFound(gerr))
	root, rerr := u.uam.GetGroup("Org")
	u.Require().NoError(rerr)
	u.Empty(root.Children)

	// The root group is permanent.
	u.Equal(except.ErrInvalid, except.Reason(u.uam.DeleteGroup("Org")))
}

func (u *UAMTestSuite) TestTreeRendersHierarchy() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "platform", Description: "Platform Team"}))
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "runtime"}))
	u.Require().NoError(u.uam.Link("Org", "platform"))
	u.Require().NoError(u.uam.Link("platform", "runtime"))

	// -- When
	//
	tree := u.uam.Tree()

	// -- Then
	//
	u.Require().NotNil(tree)
	u.Equal("Org", tree.Id)
	u.Require().Len(tree.Children, 1)
	u.Equal("platform", tree.Children[0].Id)
	u.Equal("Platform Team", tree.Children[0].Label)
	u.Require().Len(tree.Children[0].Children, 1)
	u.Equal("runtime", tree.Children[0].Children[0].Id)
}

func (u *UAMTestSuite) TestUnlink() {
	// -- Given
	//
	u.Require().NoError(u.uam.UpsertGroup(model.UAMGroup{Name: "a"}))
	u.Require().NoError(u.uam.Link("Org", "a"))

	// -- When
	//
	err := u.uam.Unlink("Org", "a")

	// -- Then
	//
	u.NoError(err)
	u.True(except.IsNotFound(u.uam.Unlink("Org", "a")))
}

func TestUAMTestSuite(t *testing.T) {
	suite.Run(t, new(UAMTestSuite))
}
