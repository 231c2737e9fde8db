package application

import "github.com/wms-platform/fulfillment-service/internal/domain"

// ToMovementDTO converts a ledger entry to MovementDTO
func ToMovementDTO(m *domain.StockMovement) *MovementDTO {
	if m == nil {
		return nil
	}
	return &MovementDTO{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Quantity:      m.Quantity,
		Type:          string(m.Type),
		Direction:     string(m.Direction),
		SourceShelfID: m.SourceShelfID,
		TargetShelfID: m.TargetShelfID,
		ReferenceKind: string(m.Reference.Kind),
		ReferenceID:   m.Reference.ID,
		Actor:         m.Actor,
		Note:          m.Note,
		RecordedAt:    m.RecordedAt,
	}
}

// ToMovementDTOs converts a slice of ledger entries
func ToMovementDTOs(movements []*domain.StockMovement) []MovementDTO {
	out := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		out = append(out, *ToMovementDTO(m))
	}
	return out
}

// ToLocationStockDTO converts a location row; classOf may be nil
func ToLocationStockDTO(s *domain.LocationStock, classOf domain.ShelfClassLookup) *LocationStockDTO {
	if s == nil {
		return nil
	}
	dto := &LocationStockDTO{
		ProductID: s.ProductID,
		ShelfID:   s.ShelfID,
		Quantity:  s.Quantity,
		UpdatedAt: s.UpdatedAt,
	}
	if classOf != nil {
		if class, ok := classOf(s.ShelfID); ok {
			dto.ShelfClass = string(class)
		}
	}
	return dto
}

// ToProductStockDTO converts an aggregate and its locations
func ToProductStockDTO(agg *domain.ProductAggregate, locations []*domain.LocationStock, classOf domain.ShelfClassLookup) *ProductStockDTO {
	if agg == nil {
		return nil
	}
	locs := make([]LocationStockDTO, 0, len(locations))
	for _, l := range locations {
		locs = append(locs, *ToLocationStockDTO(l, classOf))
	}
	return &ProductStockDTO{
		ProductID:   agg.ProductID,
		OnHand:      agg.OnHand,
		Sellable:    agg.Sellable,
		NonSellable: agg.NonSellable(),
		Reserved:    agg.Reserved,
		Committed:   agg.Committed,
		Locations:   locs,
		UpdatedAt:   agg.UpdatedAt,
	}
}

// ToReconcileReportDTO converts a drift report
func ToReconcileReportDTO(r *domain.ReconcileReport) *ReconcileReportDTO {
	if r == nil {
		return nil
	}
	drifts := make([]DriftDTO, 0, len(r.Drifts))
	for _, d := range r.Drifts {
		drifts = append(drifts, DriftDTO{
			ShelfID:  d.ShelfID,
			Field:    d.Field,
			Expected: d.Expected,
			Actual:   d.Actual,
		})
	}
	return &ReconcileReportDTO{
		ProductID:     r.ProductID,
		MovementCount: r.MovementCount,
		Consistent:    r.Consistent(),
		Drifts:        drifts,
		CheckedAt:     r.CheckedAt,
	}
}

// ToAvailabilityDTO converts an advisory result
func ToAvailabilityDTO(a *domain.Availability) *AvailabilityDTO {
	if a == nil {
		return nil
	}
	shortfalls := make([]ShortfallDTO, 0, len(a.Shortfalls))
	for _, s := range a.Shortfalls {
		shortfalls = append(shortfalls, ShortfallDTO{
			ProductID:            s.ProductID,
			Required:             s.Required,
			AvailableSellable:    s.AvailableSellable,
			AvailableNonSellable: s.AvailableNonSellable,
			Missing:              s.Missing(),
			CandidateShelves:     append([]string{}, s.CandidateShelves...),
		})
	}
	return &AvailabilityDTO{
		RouteID:          a.RouteID,
		TransferRequired: !a.OK,
		Shortfalls:       shortfalls,
	}
}

// ToRouteDTO converts a route
func ToRouteDTO(r *domain.Route) *RouteDTO {
	if r == nil {
		return nil
	}

	orders := make([]RouteOrderDTO, 0, len(r.Orders))
	for i := range r.Orders {
		o := &r.Orders[i]
		lines := make([]RouteLineDTO, 0, len(o.Lines))
		for _, l := range o.Lines {
			lines = append(lines, RouteLineDTO{
				LineID:    l.LineID,
				ProductID: l.ProductID,
				Barcode:   l.Barcode,
				Quantity:  l.Quantity,
				Picked:    l.Picked,
				UnitPrice: l.UnitPrice.StringFixed(2),
			})
		}
		orders = append(orders, RouteOrderDTO{
			OrderID:     o.OrderID,
			OrderNumber: o.OrderNumber,
			FullyPicked: o.IsFullyPicked(),
			Lines:       lines,
		})
	}

	return &RouteDTO{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Status:         string(r.Status),
		Orders:         orders,
		TotalQuantity:  r.TotalQuantity(),
		PickedQuantity: r.PickedQuantity(),
		Value:          r.Value().StringFixed(2),
		PickedValue:    r.PickedValue().StringFixed(2),
		ShelfID:        r.Shelf.ShelfID,
		ShelfValidated: r.Shelf.Validated,
		CreatedBy:      r.CreatedBy,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ReadyAt:        r.ReadyAt,
		CompletedAt:    r.CompletedAt,
		CancelledAt:    r.CancelledAt,
	}
}

// ToPickingProgressDTO converts the pick-list projection
func ToPickingProgressDTO(p *domain.PickingProgress) *PickingProgressDTO {
	if p == nil {
		return nil
	}
	items := make([]PickingItemDTO, 0, len(p.Items))
	for _, item := range p.Items {
		orders := make([]OrderAllocationDTO, 0, len(item.Orders))
		for _, o := range item.Orders {
			orders = append(orders, OrderAllocationDTO(o))
		}
		items = append(items, PickingItemDTO{
			Barcode:        item.Barcode,
			ProductID:      item.ProductID,
			ShelfID:        item.ShelfID,
			ShelfLocation:  item.ShelfLocation,
			TotalQuantity:  item.TotalQuantity,
			PickedQuantity: item.PickedQuantity,
			IsComplete:     item.IsComplete,
			Orders:         orders,
		})
	}
	return &PickingProgressDTO{
		RouteID:         p.RouteID,
		Status:          string(p.Status),
		Items:           items,
		TotalQuantity:   p.TotalQuantity,
		PickedQuantity:  p.PickedQuantity,
		NextBarcode:     p.NextBarcode,
		ExpectedShelfID: p.ExpectedShelf,
		ShelfValidated:  p.ShelfValidated,
	}
}

// ToApportionmentDTOs converts a scan's apportionment plan
func ToApportionmentDTOs(plan []domain.Apportionment) []ApportionmentDTO {
	out := make([]ApportionmentDTO, 0, len(plan))
	for _, p := range plan {
		out = append(out, ApportionmentDTO(p))
	}
	return out
}

// ToReturnItemDTO converts a return item
func ToReturnItemDTO(item *domain.ReturnItem) *ReturnItemDTO {
	if item == nil {
		return nil
	}
	return &ReturnItemDTO{
		ID:          item.ID,
		Barcode:     item.Barcode,
		OrderID:     item.OrderID,
		Quantity:    item.Quantity,
		Condition:   string(item.Condition),
		Status:      string(item.Status),
		ProductID:   item.ProductID,
		ShelfID:     item.ShelfID,
		MovementID:  item.MovementID,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		ResolvedAt:  item.ResolvedAt,
		RestockedAt: item.RestockedAt,
	}
}
