package services

import (
	"context"
	"fmt"
	"strings"

	"Gin_postgres_redis_campus_rent/apperr"
	"Gin_postgres_redis_campus_rent/db"
	"Gin_postgres_redis_campus_rent/models"
	"Gin_postgres_redis_campus_rent/policy"
)

type RoomService struct{ repo *db.Repo }

func NewRoomService(repo *db.Repo) *RoomService { return &RoomService{repo: repo} }

type RoomInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

type RoomUpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Capacity *int    `json:"capacity" validate:"omitempty,gte=0"`
}

// RentInput userId 为空时为调用者本人
type RentInput struct {
	UserID    string `json:"userId" validate:"omitempty,max=64"`
	Capacity  int    `json:"capacity" validate:"gte=0"`
	Condition string `json:"condition" validate:"max=255"`
	Notes     string `json:"notes" validate:"max=1000"`
}

func (in RentInput) target(a Actor) string {
	if in.UserID != "" {
		return in.UserID
	}
	return a.ID
}

func (in RentInput) meta() db.RentalMeta {
	return db.RentalMeta{Capacity: in.Capacity, Condition: strings.TrimSpace(in.Condition), Notes: strings.TrimSpace(in.Notes)}
}

func (s *RoomService) Create(ctx context.Context, a Actor, in RoomInput) (*models.Room, error) {
	if err := policy.Authorize(policy.CreateRoom, a.Role); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return nil, err
	}
	if taken, err := s.repo.RoomNameTaken(ctx, in.Name, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Room with this name already exists")
	}
	room := &models.Room{Name: in.Name, Capacity: in.Capacity}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionRoomCreate, "room", room.ID, room.Name)
	return room, nil
}

func (s *RoomService) Update(ctx context.Context, a Actor, id string, in RoomUpdateInput) (*models.Room, error) {
	if err := policy.Authorize(policy.UpdateRoom, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	room, err := s.repo.FindRoomByIDUnscoped(ctx, id)
	if err != nil {
		return nil, err
	}
	if room.DeletedAt.Valid {
		return nil, apperr.Forbidden("Room has been deleted")
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.ValidationFields(map[string]string{"name": "required"})
		}
		if name != room.Name {
			if taken, err := s.repo.RoomNameTaken(ctx, name, id); err != nil {
				return nil, err
			} else if taken {
				return nil, apperr.Conflict("Room with this name already exists")
			}
			fields["name"] = name
		}
	}
	if in.Capacity != nil {
		fields["capacity"] = *in.Capacity
	}
	if len(fields) == 0 {
		return room, nil
	}
	updated, err := s.repo.UpdateRoom(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionRoomUpdate, "room", id, updated.Name)
	return updated, nil
}

func (s *RoomService) Delete(ctx context.Context, a Actor, id string) (*models.Room, error) {
	if err := policy.Authorize(policy.DeleteRoom, a.Role); err != nil {
		return nil, err
	}
	room, err := s.repo.SoftDeleteRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionRoomDelete, "room", id, room.Name)
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	return s.repo.FindRoomByID(ctx, id)
}

func (s *RoomService) ListAvailable(ctx context.Context) ([]models.Room, error) {
	return s.repo.ListRooms(ctx, db.RoomsAvailable)
}

func (s *RoomService) ListAll(ctx context.Context) ([]models.Room, error) {
	return s.repo.ListRooms(ctx, db.RoomsAll)
}

func (s *RoomService) ListRented(ctx context.Context) ([]db.RoomWithRental, error) {
	return s.repo.ListRentedRoomsWithRental(ctx)
}

func (s *RoomService) StartRental(ctx context.Context, a Actor, roomID string, in RentInput) (*models.RoomRental, error) {
	if err := policy.Authorize(policy.StartRoomRental, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	l, err := s.repo.StartRoomRental(ctx, roomID, in.target(a), in.meta())
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionRoomRentStart, "room", roomID, fmt.Sprintf("user=%s rental=%s", l.UserID, l.ID))
	return l, nil
}

func (s *RoomService) EndRental(ctx context.Context, a Actor, roomID string, in RentInput) (*models.RoomRental, error) {
	if err := policy.Authorize(policy.EndRoomRental, a.Role); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}
	l, err := s.repo.EndRoomRental(ctx, roomID, in.target(a), in.meta())
	if err != nil {
		return nil, err
	}
	audit(ctx, s.repo, a, models.ActionRoomRentEnd, "room", roomID, fmt.Sprintf("user=%s rental=%s", l.UserID, l.ID))
	return l, nil
}
